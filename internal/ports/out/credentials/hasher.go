package credentials

import "errors"

// ErrMismatch indicates the presented secret does not match the stored hash.
var ErrMismatch = errors.New("secret does not match")

// Hasher hashes and verifies member secrets.
type Hasher interface {
	Hash(secret string) ([]byte, error)
	Compare(hash []byte, secret string) error
}

// SecretGenerator produces one-time temporary secrets.
type SecretGenerator interface {
	NewTemporarySecret() (string, error)
}
