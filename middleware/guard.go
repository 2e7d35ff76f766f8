package middleware

import (
	"context"
	"net/http"
	"strings"

	stayAuth "github.com/MrEthical07/stayAuth"
)

const (
	msgAuthRequired = "Authentication required."
	msgTokenInvalid = "Invalid or expired token."
	msgForbidden    = "Not authorized."
)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*stayAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*stayAuth.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx. Tests use it to fake an authenticated
// request.
func WithAuthResult(ctx context.Context, res *stayAuth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

func Guard(engine *stayAuth.Engine, routeMode stayAuth.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteMessage(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteMessage(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}

			res, err := engine.Validate(r.Context(), token, routeMode)
			if err != nil {
				WriteMessage(w, http.StatusUnauthorized, msgTokenInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

func RequireAuth(engine *stayAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, stayAuth.ModeInherit)
}

// RequireJWTOnly skips the store lookup for the wrapped handler.
func RequireJWTOnly(engine *stayAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, stayAuth.ModeJWTOnly)
}

func RequireStrict(engine *stayAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, stayAuth.ModeStrict)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
