package middleware

import (
	"context"
	"net/http"

	"github.com/rifthq/smartstats/internal/domain"
)

const traceIDKey contextKey = "traceID"

// TraceHeader carries the client-supplied trace identifier.
const TraceHeader = "X-Trace-Id"

// TraceID accepts the client trace ID or mints one, and echoes it back.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = domain.NewTraceID()
		}

		w.Header().Set(TraceHeader, traceID)

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTraceID gets the trace ID from context
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}
