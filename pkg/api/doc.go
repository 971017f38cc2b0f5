// Package api serves the state of a plugin registry over HTTP.
//
// The server is read-mostly: it lists the discovered units, the decisions
// taken for every archive entry, the configured capabilities and the created
// pluggables. POST /v1/reload runs a new load cycle with the same filter and
// paths.
//
//	srv := api.NewServer(registry, filter, paths,
//		api.WithLogger(log),
//		api.WithMetrics(metrics, promRegistry),
//	)
//	http.ListenAndServe(":8080", srv)
//
// Routes:
//
//	GET  /v1/status
//	GET  /v1/units
//	GET  /v1/units/{index}
//	GET  /v1/capabilities
//	GET  /v1/pluggables?capability=<name>
//	POST /v1/reload
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics
package api
