package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestB2SAndS2B(t *testing.T) {
	s := "impromptu"
	b := S2B(s)
	assert.Equal(t, []byte(s), b)
	assert.Equal(t, s, B2S(b))
	assert.Equal(t, "", B2S(nil))
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(20)
	require.NoError(t, err)
	_, err = base64.URLEncoding.DecodeString(s)
	assert.NoError(t, err)
}

func TestGenerateRoomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateRoomCode()
		require.NoError(t, err)
		require.Len(t, code, RoomCodeLength)
		for j := 0; j < len(code); j++ {
			assert.GreaterOrEqual(t, strings.IndexByte(RoomCodeAlphabet, code[j]), 0, "code %q has byte outside alphabet", code)
		}
		seen[code] = true
	}
	// 32^6 codes, 100 draws colliding into one would be broken randomness.
	assert.Greater(t, len(seen), 1)
}

func TestGenerateAlias(t *testing.T) {
	for i := 0; i < 100; i++ {
		alias, err := GenerateAlias()
		require.NoError(t, err)
		require.Len(t, alias, AliasLength)
		for j := 0; j < len(alias); j++ {
			assert.GreaterOrEqual(t, strings.IndexByte(AliasAlphabet, alias[j]), 0, "alias %q has byte outside alphabet", alias)
		}
	}
}

func TestRoomCodeAlphabetHasNoAmbiguousSymbols(t *testing.T) {
	assert.Len(t, RoomCodeAlphabet, 32)
	for _, c := range []string{"0", "O", "1", "I"} {
		assert.NotContains(t, RoomCodeAlphabet, c)
	}
}
