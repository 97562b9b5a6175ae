package wake

import "io"

// Encryptor seals database snapshots before they leave the device.
// Sealing needs only the public key; opening a snapshot needs the
// passphrase-protected private key.
type Encryptor interface {
	// Setup generates the key pair, run once from `wake config init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked key in memory for one restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
