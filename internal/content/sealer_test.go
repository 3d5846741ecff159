package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("0x" + testKey)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("build a solar co-op"), "creator-title")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "solar")

	plain, err := s.Open(sealed, "creator-title")
	require.NoError(t, err)
	assert.Equal(t, "build a solar co-op", string(plain))

	_, err = s.Open(sealed, "other-ref")
	assert.Error(t, err)
}

func TestNewSealer_BadKeys(t *testing.T) {
	_, err := NewSealer("")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = NewSealer("zz")
	assert.Error(t, err)

	_, err = NewSealer(strings.Repeat("ab", 16))
	assert.Error(t, err)
}
