// Package observability provides logging, Prometheus metrics, OpenTelemetry
// tracing and health checks for capload.
//
// # Logging
//
//	logger, err := observability.NewLogger("debug", "text", os.Stderr)
//
// Debug level logs every archive entry that was skipped and why. Trace level
// additionally logs every type decoded by a loading context.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	reg := plugins.NewRegistry(plugins.WithMetrics(metrics))
//
// A nil *Metrics is accepted everywhere and records nothing.
//
// # Tracing
//
// Spans are created through the global OpenTelemetry provider. InitOTel
// installs OTLP/gRPC trace and metric providers:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "capload",
//		Insecure:    true,
//	}, logger)
//	defer providers.Shutdown(context.Background())
//
// Without a provider the spans are no-ops.
package observability
