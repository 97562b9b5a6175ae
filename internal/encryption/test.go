package encryption

import (
	"bytes"
	"fmt"
	"io"

	"wake-go/internal/wake"
)

// testMagic marks output of TestEncryptor.
var testMagic = []byte("WAKE-TEST\n")

// TestEncryptor frames data with a fixed marker instead of encrypting it.
// When Setup was called, Unlock checks the passphrase so wrong-passphrase
// paths can be exercised without scrypt.
type TestEncryptor struct {
	passphrase string
	configured bool
}

var _ wake.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (wake.DecryptionContext, error) {
	if e.configured && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

// IsConfigured is always true so tests need no setup step.
func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the marker written by TestEncryptor.
type TestDecryptionContext struct{}

var _ wake.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	got := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(got, testMagic) {
		return fmt.Errorf("data was not produced by TestEncryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
