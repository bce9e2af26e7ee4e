package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	"github.com/aurorasketchpad/aurora/internal/common"
)

// Password hash schemes.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// PasswordHasher produces and checks salted, cost-parameterised password
// hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
	// CompareDummy spends about as long as a real Compare and always fails.
	CompareDummy(password string)
}

// Passwords hashes new passwords with the configured scheme and verifies
// stored hashes of either scheme, detected by prefix.
type Passwords struct {
	scheme string
	cost   int
	params *argon2id.Params
	dummy  string
}

func NewPasswords(scheme string, bcryptCost int) (*Passwords, error) {
	p := &Passwords{scheme: scheme, cost: bcryptCost, params: argon2id.DefaultParams}

	switch scheme {
	case SchemeBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	case SchemeArgon2id:
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}

	dummy, err := p.Hash("aurora-timing-placeholder")
	if err != nil {
		return nil, err
	}
	p.dummy = dummy
	return p, nil
}

func (p *Passwords) Hash(password string) (string, error) {
	if p.scheme == SchemeArgon2id {
		return argon2id.CreateHash(password, p.params)
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", common.ErrValidation)
		}
		return "", err
	}
	return string(b), nil
}

func (p *Passwords) Compare(hash, password string) (bool, error) {
	if strings.HasPrefix(hash, "$argon2id$") {
		return argon2id.ComparePasswordAndHash(password, hash)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (p *Passwords) CompareDummy(password string) {
	_, _ = p.Compare(p.dummy, password)
}
