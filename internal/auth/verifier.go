package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeBcrypt = "bcrypt"
	SchemePlain  = "plain"
)

// Verifier turns passwords into stored credentials and checks them.
type Verifier interface {
	Hash(password string) (string, error)
	Verify(stored, password string) bool
}

func NewVerifier(scheme string) (Verifier, error) {
	switch scheme {
	case SchemeBcrypt, "":
		return BcryptVerifier{Cost: bcrypt.DefaultCost}, nil
	case SchemePlain:
		return PlainVerifier{}, nil
	}
	return nil, fmt.Errorf("unknown password scheme %q", scheme)
}

type BcryptVerifier struct {
	Cost int
}

func (v BcryptVerifier) Hash(password string) (string, error) {
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (BcryptVerifier) Verify(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// PlainVerifier compares cleartext credentials. It exists for databases that
// were seeded with unhashed passwords and should not be used otherwise.
type PlainVerifier struct{}

func (PlainVerifier) Hash(password string) (string, error) { return password, nil }

func (PlainVerifier) Verify(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}
