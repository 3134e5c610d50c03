package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civic-assoc/membership-api/internal/ports/out/credentials"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret-value")
	require.NoError(t, err)

	require.NoError(t, h.Compare(hash, "s3cret-value"))
	require.ErrorIs(t, h.Compare(hash, "wrong"), credentials.ErrMismatch)
}

func TestGenerator(t *testing.T) {
	t.Parallel()

	g := NewGenerator()
	a, err := g.NewTemporarySecret()
	require.NoError(t, err)
	b, err := g.NewTemporarySecret()
	require.NoError(t, err)

	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, strings.ContainsRune(temporaryAlphabet, r), "unexpected rune %q", r)
	}
}
