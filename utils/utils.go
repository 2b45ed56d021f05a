package utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"unsafe"
)

type Key string

// RoomCodeAlphabet leaves out 0, O, 1 and I so codes survive being read
// aloud or scribbled down.
const RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const AliasAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	RoomCodeLength = 6
	AliasLength    = 5
)

// B2S converts a byte slice to a string without copying.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2B converts a string to a byte slice without copying. The result must
// not be mutated.
func S2B(s string) []byte {
	return *(*[]byte)(unsafe.Pointer(
		&struct {
			string
			Cap int
		}{s, len(s)},
	))
}

// GenerateRandomBytes returns securely generated random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded random string.
func GenerateRandomString(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	return base64.URLEncoding.EncodeToString(b), err
}

// GenerateFromAlphabet returns a random string of length n drawn uniformly
// from the given alphabet.
func GenerateFromAlphabet(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[v.Int64()]
	}
	return B2S(b), nil
}

// GenerateRoomCode returns a new 6 character room code.
func GenerateRoomCode() (string, error) {
	return GenerateFromAlphabet(RoomCodeAlphabet, RoomCodeLength)
}

// GenerateAlias returns a new 5 character member alias.
func GenerateAlias() (string, error) {
	return GenerateFromAlphabet(AliasAlphabet, AliasLength)
}
