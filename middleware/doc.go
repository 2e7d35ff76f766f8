// Package middleware exposes net/http adapters around stayAuth.Engine and
// the ambient concerns of the HTTP surface.
//
// # Guards
//
//   - [Guard] validates the bearer token in the mode given.
//   - [RequireAuth] uses the engine's configured mode.
//   - [RequireJWTOnly] trusts signature and expiry alone.
//   - [RequireStrict] also checks the user still holds a refresh session.
//   - [RequireRole] must run behind one of the guards above.
//
// Guards delegate every decision to Engine.Validate and never parse JWTs
// themselves. Rejections are JSON bodies of the form {"message": "..."}.
//
// # Ambient
//
//   - [ClientInfo] copies the client IP and user agent into the request
//     context for audit and throttling.
//   - [IPRateLimiter] is an in-process token bucket per client IP.
//   - [CORS], [RequestLogger] and [Recover].
package middleware
