// Package jwt issues and verifies the two token kinds used by the service:
// short-lived access tokens carrying identity and role, and longer-lived
// refresh tokens that only identify the subject.
//
// Tokens are opaque to callers; only this package inspects claims.
package jwt
