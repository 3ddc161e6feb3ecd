package bodylimit

import (
	"context"
	"net/http"
)

type limitKey struct{}

// withLimit stores the effective limit on the request context before the
// request is forwarded downstream.
func withLimit(r *http.Request, limit int64) *http.Request {
	ctx := context.WithValue(r.Context(), limitKey{}, limit)
	return r.WithContext(ctx)
}

// FromContext returns the body-size limit the middleware installed for this
// request, if any. Downstream collaborators can use it to size their own
// buffers, e.g. a multipart parser's memory limit.
func FromContext(ctx context.Context) (int64, bool) {
	limit, ok := ctx.Value(limitKey{}).(int64)
	return limit, ok
}
