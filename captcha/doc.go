// Package captcha issues and verifies single-use, purpose-scoped text
// challenges rendered as inline SVG.
//
// A challenge is stored under an unguessable id and removed by the first
// verification attempt whatever its outcome, so an id can succeed at most
// once. A challenge issued for one purpose (for example "login") never
// satisfies a check for another ("booking").
//
// # Stores
//
//   - [MemoryStore]: process-local map, expired entries swept lazily on every access.
//   - [RedisStore]: shared across instances; GETDEL makes take-and-delete atomic.
package captcha
