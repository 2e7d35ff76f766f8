// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are encoded as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Length policy is enforced here so that every caller (registration, OTP
// signup, reset and change) rejects short passwords the same way.
package password
