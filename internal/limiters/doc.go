// Package limiters provides the domain throttles built on top of the
// internal/rate fixed-window counter.
//
// # Limiters
//
//   - [AuthLimiter]: login failures, signup OTP sends and password reset
//     requests, keyed per email and optionally per client IP.
//
// All methods are nil-safe: a nil *AuthLimiter allows everything, which is
// how the engine runs without Redis.
//
// # Key namespaces
//
//	al:<email>     ali:<ip>      login failures
//	aotp:<email>   aotpip:<ip>   OTP sends
//	apri:<email>   aprip:<ip>    reset requests
package limiters
