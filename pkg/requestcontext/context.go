// Package requestcontext carries per-request facts through a context so
// services and log lines can read them without importing net/http.
package requestcontext

import (
	"context"
	"time"
)

// Request is what the HTTP edge knows about the caller.
type Request struct {
	ID       string
	ClientIP string
	Received time.Time
}

type requestKey struct{}

// With stores req in ctx, replacing any earlier value.
func With(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// From returns the stored request, or the zero Request outside HTTP.
func From(ctx context.Context) Request {
	req, _ := ctx.Value(requestKey{}).(Request)
	return req
}

// RequestID is From(ctx).ID.
func RequestID(ctx context.Context) string { return From(ctx).ID }

// ClientIP is From(ctx).ClientIP.
func ClientIP(ctx context.Context) string { return From(ctx).ClientIP }

// Elapsed reports time since the request arrived; zero when unknown.
func Elapsed(ctx context.Context) time.Duration {
	received := From(ctx).Received
	if received.IsZero() {
		return 0
	}
	return time.Since(received)
}
