package middleware

import (
	"net"
	"net/http"
	"strings"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// ClientIP returns the caller's address. With trustProxy the first entry
// of X-Forwarded-For wins; otherwise only RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientInfo records the client IP and user agent on the request context
// so engine throttles and audit events can see them.
func ClientInfo(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := stayAuth.WithClientIP(r.Context(), ClientIP(r, trustProxy))
			ctx = stayAuth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
