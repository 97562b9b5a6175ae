package encryption

import (
	"fmt"

	"wake-go/internal/config"
	"wake-go/internal/wake"
)

// NewEncryptorFromConfig selects the encryptor named by cfg.Type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (wake.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption needs public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
