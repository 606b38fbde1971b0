// Package requestid propagates request IDs through contexts and HTTP headers.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

const maxInboundLen = 64

type ctxKey struct{}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID of ctx, or a fresh one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// New generates a request ID and returns the enriched context with it.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// FromHeader keeps a caller-supplied ID when it is short printable ASCII and
// generates one otherwise.
func FromHeader(value string) string {
	if value == "" || len(value) > maxInboundLen {
		return uuid.NewString()
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x21 || value[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return value
}
