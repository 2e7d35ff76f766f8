// Package stores provides Redis-backed, short-lived record stores for the
// signup flow.
//
// # Design
//
// A pending signup is a Redis hash holding the OTP hash, the encoded
// record and its creation time, with a TTL that outlives the OTP so an
// expired code can still be reported as expired. Every mutation that must
// not race (upsert keeping createdAt, compare-and-delete on confirmation)
// runs as a single Lua script.
//
// # What this package must NOT do
//
//   - Make authentication decisions; expiry is judged by the engine.
//   - Log or expose OTP or password hashes.
package stores
