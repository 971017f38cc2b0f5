// Package config loads capload configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
//
// # File
//
//	plugins:
//	  paths: [./plugins]
//	  capabilities: [./api/Greeter.type.yaml]
//	  policy: any            # any | all
//	  method_order: positional
//	  names: [legacy.zip]
//	  whitelist: false
//	  parallelism: 4
//	server:
//	  port: "8080"
//	observability:
//	  log_level: debug
//	  log_format: json
//	  otel:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    service_name: capload
//	    insecure: true
//
// Relative paths in the file are resolved against the file's directory.
//
// # Environment
//
//	CAPLOAD_PATHS="/opt/plugins:/usr/share/plugins"   # os.PathListSeparator
//	CAPLOAD_CAPABILITIES="api/Greeter.type.yaml,api/Closer.type.yaml"
//	CAPLOAD_POLICY="all"
//	CAPLOAD_METHOD_ORDER="name"
//	CAPLOAD_NAMES="legacy.zip"
//	CAPLOAD_WHITELIST="false"
//	CAPLOAD_PARALLELISM="4"
//	CAPLOAD_ARCHIVE_SUFFIX=".zip"
//	CAPLOAD_TYPE_SUFFIX=".type.yaml"
//	CAPLOAD_INDEX_SIZE="256"
//	CAPLOAD_INDEX_TTL="10m"
//	CAPLOAD_HOST="0.0.0.0"
//	CAPLOAD_PORT="8080"
//	CAPLOAD_READ_TIMEOUT="15s"
//	CAPLOAD_WRITE_TIMEOUT="15s"
//	CAPLOAD_IDLE_TIMEOUT="60s"
//	CAPLOAD_SHUTDOWN_TIMEOUT="30s"
//	CAPLOAD_LOG_LEVEL="info"      # trace, debug, info, warn, error
//	CAPLOAD_LOG_FORMAT="text"     # text, json
//	CAPLOAD_METRICS_ENABLED="true"
//	CAPLOAD_OTEL_ENABLED="false"
//	CAPLOAD_OTEL_ENDPOINT="localhost:4317"
//	CAPLOAD_OTEL_SERVICE_NAME="capload"
//	CAPLOAD_OTEL_SERVICE_VERSION=""   # defaults to the binary version
//	CAPLOAD_OTEL_INSECURE="true"
//
// Load returns the merged configuration without validating it, so that
// command line flags can be applied before Validate. LoadConfig validates.
package config
