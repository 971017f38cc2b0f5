// Package httputil provides the JSON response helpers, query parsing and
// middleware shared by the capload HTTP API.
//
//	router.Use(httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware(log),
//	))
//
//	httputil.WriteJSON(w, http.StatusOK, units)
//	httputil.WriteNotFound(w, "no unit at index 3")
package httputil
