package middleware

import (
	"net/http"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
)

// TraceMiddleware stamps each request with a trace ID and stashes a
// trace-scoped logger in the context. Handlers that pull their logger through
// logger.FromContextOrDefault get the trace_id attribute on every line
// without threading it themselves; error responses pick the same ID up via
// shared.GetTraceID. Runs before auth so failed logins are traceable too.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		log := logger.FromContext(ctx).With("trace_id", shared.GetTraceID(ctx))
		ctx = logger.WithLogger(ctx, log)

		log.DebugContext(ctx, "request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
