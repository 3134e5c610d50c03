// Package requestctx carries per-request client metadata from the transport layer
// down to the audit trail.
package requestctx

import "context"

// Client describes the caller's network identity.
type Client struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type clientKey struct{}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the client stored in ctx, or the zero value.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
