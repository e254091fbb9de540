// Package auth provides API key hashing and verification for the policy
// upload endpoint.
package auth

import (
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKey returns an Argon2id hash of the raw key in PHC format.
// Format: $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func HashKey(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// VerifyKey verifies a raw key against a stored Argon2id hash.
// Returns (true, nil) on match, (false, nil) on mismatch, and an error for
// malformed hashes.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	if !strings.HasPrefix(storedHash, "$argon2id$") {
		return false, fmt.Errorf("unsupported hash format")
	}
	return safeCompare(rawKey, storedHash)
}

// safeCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The underlying argon2 library panics on hashes with invalid parameters
// (e.g., t=0 rounds); convert those to errors so VerifyKey never panics.
func safeCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
