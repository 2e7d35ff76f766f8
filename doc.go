// Package stayAuth is the authentication engine behind the StayEase
// marketplace: email/password accounts with OTP-confirmed signup, captcha
// gated login, short-lived JWT access tokens and rotating refresh tokens
// whose hash is stored on the user record.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// stayAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and the value types its operations return. Persistence is reached only
// through [UserStore] and [PendingSignupStore]; the memstore and mongostore
// packages implement both. Throttling, audit dispatch and token encoding
// live under internal/ or in their own packages (jwt, password, captcha).
//
// # What this package must NOT do
//
//   - Return password, OTP, reset or refresh token hashes to callers; every
//     user leaving the engine goes through [ToPublicView].
//   - Disclose OTP previews or reset tokens when ProductionMode is on.
//   - Import httpapi, middleware or any store package.
//
// # Sessions
//
// One user has at most one live refresh token. Login, signup and refresh
// overwrite the stored hash, so presenting an older token fails with
// [ErrRefreshInvalid]. In ModeJWTOnly, [Engine.Validate] checks only the
// signature and expiry; ModeStrict also loads the user and requires an
// active session.
package stayAuth
