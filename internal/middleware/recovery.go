package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/onnwee/forcemap/internal/errorreporting"
	"github.com/onnwee/forcemap/internal/logger"
)

// RecoverWithSentry turns handler panics into 500 responses. The panic and
// stack are logged with the request ID and forwarded to Sentry when reporting
// is enabled, so a crashing layout request never takes the server down.
func RecoverWithSentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			stack := debug.Stack()
			logger.ErrorContext(r.Context(), "Panic recovered",
				"error", v,
				"stack", string(stack),
				"method", r.Method,
				"path", r.URL.Path,
			)
			reportPanic(r, v, stack)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

func reportPanic(r *http.Request, v any, stack []byte) {
	if !errorreporting.IsSentryEnabled() {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetRequest(r)
	hub.Scope().SetLevel(sentry.LevelError)
	hub.Scope().SetTag("method", r.Method)
	hub.Scope().SetTag("path", r.URL.Path)
	if err, ok := v.(error); ok {
		hub.CaptureException(err)
		return
	}
	hub.CaptureMessage(errorreporting.ScrubPII(string(stack)))
}
