package auth

import (
	"usersystem/internal/domain"
	"usersystem/internal/pkg/hashing"
)

// IssueActionToken mints the single-use token embedded in emailed
// verification and password-reset links. The token is a bcrypt digest
// of the user's current context string, so no token state is stored:
// once the tracked timestamp moves, every previously issued token for
// that tag stops verifying.
func IssueActionToken(u *domain.User, tag string) (string, error) {
	return hashing.Hash(u.ContextString(tag))
}

// CheckActionToken recomputes the context against the user's current
// stored state and verifies the presented token against it. Fails
// closed on anything unexpected.
func CheckActionToken(u *domain.User, tag, presented string) bool {
	return hashing.Verify(u.ContextString(tag), presented)
}
