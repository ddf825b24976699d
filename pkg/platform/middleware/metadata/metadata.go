// Package metadata stamps every request with an ID, the caller's address and
// its arrival time.
package metadata

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/pkg/requestcontext"
)

// HeaderRequestID carries the caller's correlation ID; one is minted when absent.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// ClientMetadata is Stamp with the wall clock.
func ClientMetadata(next http.Handler) http.Handler {
	return Stamp(time.Now)(next)
}

// Stamp records request metadata using now for the arrival time. It must run
// first so later middleware can log the request ID.
func Stamp(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := requestcontext.With(r.Context(), requestcontext.Request{
				ID:       id,
				ClientIP: callerAddr(r),
				Received: now(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerAddr prefers the left-most X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func callerAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
