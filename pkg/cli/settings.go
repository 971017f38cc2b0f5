package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/config"
	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/plugins"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// pluginFlags override the plugins section of the configuration. Only flags
// set on the command line are applied.
type pluginFlags struct {
	capabilities []string
	policy       string
	methodOrder  string
	names        []string
	whitelist    bool
	parallelism  int
}

func (p *pluginFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&p.capabilities, "capability", nil, "capability descriptor file (repeatable)")
	flags.StringVar(&p.policy, "policy", "", "capability policy (any or all)")
	flags.StringVar(&p.methodOrder, "method-order", "", "method pairing (positional or name)")
	flags.StringSliceVar(&p.names, "names", nil, "archive base names for the name list")
	flags.BoolVar(&p.whitelist, "whitelist", false, "treat --names as a whitelist")
	flags.IntVar(&p.parallelism, "parallelism", 0, "archives loaded at once")
}

func (p *pluginFlags) apply(cmd *cobra.Command, cfg *config.PluginsConfig) {
	flags := cmd.Flags()
	if flags.Changed("capability") {
		cfg.Capabilities = p.capabilities
	}
	if flags.Changed("policy") {
		cfg.Policy = p.policy
	}
	if flags.Changed("method-order") {
		cfg.MethodOrder = p.methodOrder
	}
	if flags.Changed("names") {
		cfg.Names = p.names
	}
	if flags.Changed("whitelist") {
		cfg.Whitelist = p.whitelist
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = p.parallelism
	}
}

// load builds the configuration and logger for cmd. Flags override the file
// and environment before validation. Log output goes to the command's error
// stream.
func (g *globalOptions) load(cmd *cobra.Command, pf *pluginFlags) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}

	if pf != nil {
		pf.apply(cmd, &cfg.Plugins)
	}
	if g.logLevel != "" {
		cfg.Observability.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Observability.LogFormat = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// defineCapabilities loads capability descriptors into a host universe in
// the given order. A file repeated is defined once; two files defining one
// name differently are an error.
func defineCapabilities(paths []string) (*typedef.Universe, []*typedef.Type, error) {
	host := typedef.NewUniverse()
	caps := make([]*typedef.Type, 0, len(paths))
	for _, path := range paths {
		t, err := host.DefineFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load capability %s: %w", path, err)
		}
		if !t.IsInterface() {
			return nil, nil, fmt.Errorf("capability %s is a %s, not an interface", t.Name(), t.Kind())
		}
		if !slices.Contains(caps, t) {
			caps = append(caps, t)
		}
	}
	return host, caps, nil
}

// newFilter builds the standard filter described by cfg
func newFilter(cfg config.PluginsConfig, caps []*typedef.Type) *plugins.StandardFilter {
	polarity := plugins.Blacklist
	if cfg.Whitelist {
		polarity = plugins.Whitelist
	}
	return plugins.NewStandardFilter(caps...).
		AddNames(cfg.Names...).
		SetPolarity(polarity).
		SetPolicy(cfg.ParsedPolicy()).
		SetMatcher(capability.NewMatcher(capability.WithMethodOrder(cfg.ParsedMethodOrder()))).
		SetArchiveSuffix(cfg.ArchiveSuffix).
		SetTypeSuffix(cfg.TypeSuffix)
}

// session is everything needed to run a load cycle
type session struct {
	cfg    *config.Config
	log    *logrus.Logger
	host   *typedef.Universe
	filter *plugins.StandardFilter
}

func (g *globalOptions) newSession(cmd *cobra.Command, pf *pluginFlags) (*session, error) {
	cfg, log, err := g.load(cmd, pf)
	if err != nil {
		return nil, err
	}

	host, caps, err := defineCapabilities(cfg.Plugins.Capabilities)
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		log.Warn("No capabilities configured, no type will be pluggable")
	}

	return &session{
		cfg:    cfg,
		log:    log,
		host:   host,
		filter: newFilter(cfg.Plugins, caps),
	}, nil
}

// newRegistry creates a registry configured from the session. Host
// capabilities are visible to every archive.
func (s *session) newRegistry(opts ...plugins.Option) *plugins.Registry {
	base := []plugins.Option{
		plugins.WithLogger(s.log),
		plugins.WithParallelism(s.cfg.Plugins.Parallelism),
		plugins.WithMatcher(s.filter.Matcher()),
		plugins.WithIndex(loader.NewIndex(s.cfg.Plugins.IndexSize, s.cfg.Plugins.IndexTTL)),
		plugins.WithParent(s.host),
	}
	return plugins.NewRegistry(append(base, opts...)...)
}

func writef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
