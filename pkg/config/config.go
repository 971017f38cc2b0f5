package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/capload/pkg/capability"
)

// Config holds all application configuration
type Config struct {
	// Plugin discovery configuration
	Plugins PluginsConfig `yaml:"plugins"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// PluginsConfig controls discovery, filtering and matching
type PluginsConfig struct {
	Paths         []string      `yaml:"paths"`
	Capabilities  []string      `yaml:"capabilities"`
	Policy        string        `yaml:"policy"`
	MethodOrder   string        `yaml:"method_order"`
	Names         []string      `yaml:"names"`
	Whitelist     bool          `yaml:"whitelist"`
	ArchiveSuffix string        `yaml:"archive_suffix"`
	TypeSuffix    string        `yaml:"type_suffix"`
	Parallelism   int           `yaml:"parallelism"`
	IndexSize     int           `yaml:"index_size"`
	IndexTTL      time.Duration `yaml:"index_ttl"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string     `yaml:"log_level"`
	LogFormat      string     `yaml:"log_format"`
	MetricsEnabled bool       `yaml:"metrics_enabled"`
	OTel           OTelConfig `yaml:"otel"`
}

// OTelConfig configures the OTLP trace and metric exporters
type OTelConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Insecure       bool   `yaml:"insecure"` // plaintext gRPC to the collector
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Plugins: PluginsConfig{
			Policy:        "any",
			MethodOrder:   "positional",
			ArchiveSuffix: ".zip",
			TypeSuffix:    ".type.yaml",
			Parallelism:   1,
			IndexSize:     256,
			IndexTTL:      10 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "text",
			MetricsEnabled: true,
			OTel: OTelConfig{
				Endpoint:    "localhost:4317",
				ServiceName: "capload",
				Insecure:    true,
			},
		},
	}
}

// LoadConfig builds the configuration from the defaults, the YAML file at
// path (if not empty) and CAPLOAD_* environment variables, in that order,
// and validates the result
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load is LoadConfig without validation, for callers that apply further
// overrides before calling Validate
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// relative plugin paths are resolved against the file's directory
	base := filepath.Dir(path)
	c.Plugins.Paths = resolvePaths(base, c.Plugins.Paths)
	c.Plugins.Capabilities = resolvePaths(base, c.Plugins.Capabilities)
	return nil
}

func (c *Config) loadEnv() {
	p := &c.Plugins
	p.Paths = getEnvList("CAPLOAD_PATHS", string(os.PathListSeparator), p.Paths)
	p.Capabilities = getEnvList("CAPLOAD_CAPABILITIES", ",", p.Capabilities)
	p.Policy = getEnv("CAPLOAD_POLICY", p.Policy)
	p.MethodOrder = getEnv("CAPLOAD_METHOD_ORDER", p.MethodOrder)
	p.Names = getEnvList("CAPLOAD_NAMES", ",", p.Names)
	p.Whitelist = getEnvBool("CAPLOAD_WHITELIST", p.Whitelist)
	p.ArchiveSuffix = getEnv("CAPLOAD_ARCHIVE_SUFFIX", p.ArchiveSuffix)
	p.TypeSuffix = getEnv("CAPLOAD_TYPE_SUFFIX", p.TypeSuffix)
	p.Parallelism = getEnvInt("CAPLOAD_PARALLELISM", p.Parallelism)
	p.IndexSize = getEnvInt("CAPLOAD_INDEX_SIZE", p.IndexSize)
	p.IndexTTL = getEnvDuration("CAPLOAD_INDEX_TTL", p.IndexTTL)

	s := &c.Server
	s.Host = getEnv("CAPLOAD_HOST", s.Host)
	s.Port = getEnv("CAPLOAD_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("CAPLOAD_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CAPLOAD_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CAPLOAD_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("CAPLOAD_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	o := &c.Observability
	o.LogLevel = getEnv("CAPLOAD_LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("CAPLOAD_LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool("CAPLOAD_METRICS_ENABLED", o.MetricsEnabled)
	o.OTel.Enabled = getEnvBool("CAPLOAD_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("CAPLOAD_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("CAPLOAD_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.ServiceVersion = getEnv("CAPLOAD_OTEL_SERVICE_VERSION", o.OTel.ServiceVersion)
	o.OTel.Insecure = getEnvBool("CAPLOAD_OTEL_INSECURE", o.OTel.Insecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := capability.ParsePolicy(c.Plugins.Policy); err != nil {
		return err
	}
	if _, err := capability.ParseMethodOrder(c.Plugins.MethodOrder); err != nil {
		return err
	}
	if c.Plugins.ArchiveSuffix == "" {
		return fmt.Errorf("archive suffix is required")
	}
	if c.Plugins.TypeSuffix == "" {
		return fmt.Errorf("type suffix is required")
	}
	if c.Plugins.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Plugins.Parallelism)
	}
	if c.Plugins.Whitelist && len(c.Plugins.Names) == 0 {
		return fmt.Errorf("whitelist polarity requires at least one plugin name")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ParsedPolicy returns the parsed capability policy. Call after Validate.
func (p PluginsConfig) ParsedPolicy() capability.Policy {
	policy, _ := capability.ParsePolicy(p.Policy)
	return policy
}

// ParsedMethodOrder returns the parsed method order. Call after Validate.
func (p PluginsConfig) ParsedMethodOrder() capability.MethodOrder {
	order, _ := capability.ParseMethodOrder(p.MethodOrder)
	return order
}

func resolvePaths(base string, paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(base, p)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits an environment variable on sep, dropping empty items
func getEnvList(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
