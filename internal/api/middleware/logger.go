package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/openzipkin/zipkin-go/idgenerator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rohits-web03/softvault/internal/utils"
)

// Logger attaches a request scoped logger carrying a fresh trace id and
// writes one access line per request.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			l := hlog.FromRequest(r)
			var event *zerolog.Event
			switch {
			case status < 400:
				event = l.Info()
			case status < 500:
				event = l.Warn()
			default:
				event = l.Error()
			}
			event.Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Str("remote", utils.ClientIP(r)).
				Send()
		})(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace := idgenerator.NewRandom128().TraceID()
			l := log.With().Str("trace_id", trace.String()).Logger()
			w.Header().Set("X-Trace-Id", trace.String())
			access.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

// Recover turns a panicking handler into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zerolog.Ctx(r.Context()).Error().Msgf("panic: %v\n%s", rec, debug.Stack())
				utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
					Success: false,
					Message: "Internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
