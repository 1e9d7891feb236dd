package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the client key used to bucket requests.
type KeyFunc func(r *http.Request) string

// ClientIPKeyFunc keys requests by client address. When trustForwardedFor is
// set the first X-Forwarded-For hop wins, which is only safe behind a proxy
// that overwrites the header.
func ClientIPKeyFunc(trustForwardedFor bool) KeyFunc {
	return func(r *http.Request) string {
		if trustForwardedFor {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return "unknown"
	}
}
