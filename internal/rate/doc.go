// Package rate provides the Redis fixed-window counter that the domain
// limiters in internal/limiters are built on.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit. A window therefore starts at the
// first request and the key vanishes when it ends.
//
// This package knows nothing about logins or OTPs; key naming and budgets
// belong to internal/limiters.
package rate
