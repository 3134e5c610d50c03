package secret

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/civic-assoc/membership-api/internal/ports/out/credentials"
)

// BcryptHasher implements credentials.Hasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) Hash(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
}

func (h BcryptHasher) Compare(hash []byte, secret string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return credentials.ErrMismatch
	}
	return err
}

// Unambiguous characters only: no 0/O, 1/l/I.
const temporaryAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generator produces random temporary secrets.
type Generator struct {
	Length int
}

func NewGenerator() Generator { return Generator{Length: 12} }

func (g Generator) NewTemporarySecret() (string, error) {
	n := g.Length
	if n <= 0 {
		n = 12
	}
	base := big.NewInt(int64(len(temporaryAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		out[i] = temporaryAlphabet[idx.Int64()]
	}
	return string(out), nil
}
