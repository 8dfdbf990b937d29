package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server; tests inject cost 4.
const defaultCost = 12

// MinPasswordLength applies to password resets. Registration accepts any
// non-empty password.
const MinPasswordLength = 8

// MaxPasswordBytes is bcrypt's input limit; longer input is silently truncated
// by the library, so it is rejected instead.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong or the
// account has no password at all.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification. The cost is a
// field so tests can run with the minimum.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom (low) cost
// for tests in other packages. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return newPasswordServiceWithCost(cost)
}

// Hash hashes plaintext with bcrypt. The result embeds salt and cost:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil if plaintext matches hash. Comparison is constant time.
// An empty hash never matches; federated-only accounts have no password.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
