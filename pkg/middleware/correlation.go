// pkg/middleware/correlation.go
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyCorrelationID ctxKey = "corrid"

// CorrelationHeader is the request-identifier header forwarded to every
// downstream service so their logs can be joined with ours.
const CorrelationHeader = "X-Correlation-Id"

// Correlation forwards an inbound X-Correlation-Id unchanged, or mints a
// short one at the edge, and stores it in the request context.
func Correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" {
				id = NewCorrelationID()
			}
			w.Header().Set(CorrelationHeader, id)
			next.ServeHTTP(w, r.WithContext(WithCorrelation(r.Context(), id)))
		})
	}
}

// NewCorrelationID mints a short random identifier.
func NewCorrelationID() string { return uuid.NewString()[:8] }

// WithCorrelation returns a context carrying the given correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationFrom returns the correlation id carried by ctx, or "".
func CorrelationFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCorrelationID).(string); ok {
		return v
	}
	return ""
}
