package chathub

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordSealer stores and checks private-room passwords. Room logic only ever
// sees the sealed form.
type PasswordSealer interface {
	Seal(password string) (string, error)
	Verify(sealed, candidate string) bool
}

// PlainPasswords keeps passwords as given and compares them in constant time.
type PlainPasswords struct{}

func (PlainPasswords) Seal(password string) (string, error) { return password, nil }

func (PlainPasswords) Verify(sealed, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(sealed), []byte(candidate)) == 1
}

// Argon2Passwords stores an argon2id hash with a random salt.
type Argon2Passwords struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

// DefaultArgon2 uses the OWASP baseline parameters.
func DefaultArgon2() Argon2Passwords {
	return Argon2Passwords{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (a Argon2Passwords) Seal(password string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, a.Iterations, a.Memory, a.Parallelism, a.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Iterations, a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func (a Argon2Passwords) Verify(sealed, candidate string) bool {
	parts := strings.Split(sealed, "$")
	if len(parts) != 6 {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	actual := argon2.IDKey([]byte(candidate), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(expected, actual) == 1
}
