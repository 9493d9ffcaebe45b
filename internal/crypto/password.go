package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword always emits the current preferred bcrypt format. Verification
// still accepts hashes produced under older bcrypt prefixes ($2a$, $2y$), so
// records written by previous deployments keep working.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil iff the password matches the stored hash. A
// malformed stored hash is reported as a mismatch, never a panic.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
