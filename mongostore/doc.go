// Package mongostore persists users and pending signups in MongoDB.
//
// Collections follow the original service: "users" and "pendingsignups",
// both with a unique index on email. Atomic operations map to single
// document commands:
//
//	RotateRefreshTokenHash  UpdateOne filtered on the current hash
//	ConsumeResetToken       FindOneAndUpdate filtered on hash and expiry
//	ConsumePending          FindOneAndDelete filtered on email and OTP hash
package mongostore
