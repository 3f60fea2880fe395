// Package scancode issues and verifies the opaque codes printed on tickets.
//
// A code is a random identifier followed by a keyed BLAKE3 tag over it,
// base32-encoded. Forged or mistyped codes are rejected before any lookup,
// and a rejected code is indistinguishable from an unknown one to callers.
package scancode

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	idLen  = 16
	tagLen = 10
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Signer issues and verifies scan codes with a single secret key.
type Signer struct {
	key [32]byte
}

// NewSigner derives a 32-byte BLAKE3 key from secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("scancode: empty secret")
	}
	return &Signer{key: blake3.Sum256(secret)}, nil
}

// Issue returns a fresh code.
func (s *Signer) Issue() (string, error) {
	buf := make([]byte, idLen, idLen+tagLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("scancode: read random: %w", err)
	}
	tag, err := s.tag(buf)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(append(buf, tag...)), nil
}

// Valid reports whether code was issued by this signer. Case and surrounding
// whitespace are ignored so hand-typed codes still verify.
func (s *Signer) Valid(code string) bool {
	raw, err := encoding.DecodeString(Normalize(code))
	if err != nil || len(raw) != idLen+tagLen {
		return false
	}
	want, err := s.tag(raw[:idLen])
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, raw[idLen:]) == 1
}

// Normalize returns the canonical form of a code as stored.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Signer) tag(id []byte) ([]byte, error) {
	hasher, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("scancode: keyed hasher: %w", err)
	}
	_, _ = hasher.Write(id)
	return hasher.Sum(nil)[:tagLen], nil
}
