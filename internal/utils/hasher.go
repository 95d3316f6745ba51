package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Hasher hashes passwords and one-time codes with bcrypt
type Hasher struct {
	cost int
}

// NewHasher creates a new hasher with the given bcrypt cost
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt digest of secret
func (h *Hasher) Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(bytes), nil
}

// Verify compares a secret with a digest
func (h *Hasher) Verify(secret, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	return err == nil
}

// GenerateCode returns a uniformly random 6-digit verification code
func (h *Hasher) GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
