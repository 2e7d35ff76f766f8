// Package memstore provides in-process implementations of
// stayAuth.UserStore and stayAuth.PendingSignupStore.
//
// Every method takes one mutex, which makes the compare-and-set operations
// (RotateRefreshTokenHash, ConsumeResetToken, ConsumePending) trivially
// atomic. Data is lost on restart; use it for tests, the load test and
// local development.
package memstore
