package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials checks a single configured administrator.
type AdminCredentials struct {
	username string
	hash     []byte
}

// NewAdminCredentials accepts either a bcrypt hash or a plaintext password,
// hashing the latter once at startup.
func NewAdminCredentials(username, passwordHash, password string) (*AdminCredentials, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, errors.New("admin password hash is not a bcrypt hash")
		}
		return &AdminCredentials{username: username, hash: []byte(passwordHash)}, nil
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		return &AdminCredentials{username: username, hash: hash}, nil
	default:
		return nil, errors.New("admin password or password hash is required")
	}
}

func (c *AdminCredentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	return userOK && passOK
}
