package testutil

import (
	"wake-go/internal/encryption"
	"wake-go/internal/wake"
)

// NewTestEncryptor creates a reversible, keyless encryptor for testing.
func NewTestEncryptor() wake.Encryptor {
	return encryption.NewTestEncryptor()
}
