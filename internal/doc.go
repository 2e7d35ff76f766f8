// Package internal contains helpers that are private to stayAuth: secure
// random generation for OTP codes and reset tokens, and the SHA-256 hashing
// applied to every secret before it is persisted.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: Redis fixed-window throttles for login, OTP and reset requests
//   - settings: process configuration loaded from env, .env and YAML
//
// Nothing here may appear in the public stayAuth API.
package internal
