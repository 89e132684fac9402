// Package requestid carries the X-Request-ID value through request contexts
// so services can tag their logs without depending on the HTTP layer.
package requestid

import "context"

type contextKey struct{}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id, or "-" when the context carries none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok && id != "" {
		return id
	}
	return "-"
}
