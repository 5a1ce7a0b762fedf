package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/cleaner/internal/core"
)

// withClient adds the client IP and User-Agent to the context for the run
// history. RemoteAddr has already been resolved by TrustedRealIP.
func withClient(r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.ContextWithClient(r.Context(), ip, r.UserAgent())
}
