// Package hashing wraps bcrypt for account passwords and emailed
// action tokens.
package hashing

import "golang.org/x/crypto/bcrypt"

// Hash returns a self-salted bcrypt digest of plain at the default cost.
func Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. Comparison is constant
// time inside bcrypt. A malformed digest or any internal failure yields
// false, never an error: verification fails closed.
func Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
