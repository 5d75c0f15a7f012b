// Package encription wraps password hashing for the users service.
package encription

import (
	"golang.org/x/crypto/bcrypt"
)

type Enc struct {
	cost int
}

func NewEnc() *Enc {
	return &Enc{cost: bcrypt.DefaultCost}
}

// HashPassword hashes the password for storage.
func (e *Enc) HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), e.cost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CompareHashAndPassword compares a stored hash with a candidate
// password.
func (e *Enc) CompareHashAndPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
