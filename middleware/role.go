package middleware

import (
	"net/http"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// RequireRole lets the request through only when the authenticated role is
// one of roles. With no roles it only requires authentication.
func RequireRole(roles ...stayAuth.Role) func(http.Handler) http.Handler {
	allowed := make(map[stayAuth.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || res == nil {
				WriteMessage(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[res.Role]; !ok {
					WriteMessage(w, http.StatusForbidden, msgForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
