package wake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	ErrNoVault        = errors.New("no vault configured")
	ErrNotInitialized = errors.New("encryption keys not set up; run 'wake config init'")
)

// BackupResult describes an uploaded snapshot.
type BackupResult struct {
	DeviceID string
	Version  int64
	Size     int64
}

// Backup snapshots the alarm store, seals it and uploads it to the vault
// under this device's slot. Versions only move forward.
func (s *WakeService) Backup(ctx context.Context) (*BackupResult, error) {
	if s.opts.Vault == nil {
		return nil, ErrNoVault
	}
	if s.opts.Encryptor != nil && !s.opts.Encryptor.IsConfigured() {
		return nil, ErrNotInitialized
	}

	tmpDir, err := os.MkdirTemp("", "wake-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "alarms.db")
	if err := s.repo.BackupTo(dbPath); err != nil {
		return nil, fmt.Errorf("snapshotting database: %w", err)
	}

	uploadPath := dbPath
	if s.opts.Encryptor != nil {
		uploadPath = filepath.Join(tmpDir, "alarms.db.age")
		if err := sealFile(s.opts.Encryptor, dbPath, uploadPath); err != nil {
			return nil, err
		}
	} else {
		s.logger.Warn("uploading unencrypted backup")
	}

	info, err := os.Stat(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	version := s.clock.Now().UnixMilli()
	remote, err := s.opts.Vault.SnapshotVersion(ctx, s.opts.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("checking remote version: %w", err)
	}
	if remote >= version {
		version = remote + 1
	}

	err = Retry(ctx, s.opts.Transfer, func() error {
		f, err := os.Open(uploadPath)
		if err != nil {
			return Permanent(err)
		}
		defer f.Close()
		return s.opts.Vault.PutSnapshot(ctx, s.opts.DeviceID, f, info.Size(), version)
	})
	if err != nil {
		return nil, fmt.Errorf("uploading snapshot: %w", err)
	}

	s.logger.Info("backup uploaded", "device", s.opts.DeviceID, "version", version, "size", info.Size())
	return &BackupResult{DeviceID: s.opts.DeviceID, Version: version, Size: info.Size()}, nil
}

// RestoreBackup downloads this device's snapshot and writes the plaintext
// database to outPath. It never overwrites an existing file; swapping the
// restored file in is left to the user.
func (s *WakeService) RestoreBackup(ctx context.Context, passphrase string, outPath string) error {
	if s.opts.Vault == nil {
		return ErrNoVault
	}
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("refusing to overwrite %s", outPath)
	}

	var decrypt DecryptionContext
	if s.opts.Encryptor != nil {
		dc, err := s.opts.Encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking key: %w", err)
		}
		decrypt = dc
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".wake-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	err = Retry(ctx, s.opts.Transfer, func() error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return Permanent(err)
		}
		defer f.Close()
		err = s.opts.Vault.GetSnapshot(ctx, s.opts.DeviceID, f)
		if errors.Is(err, ErrSnapshotNotFound) {
			return Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("downloading snapshot: %w", err)
	}

	if decrypt == nil {
		if err := os.Rename(tmpPath, outPath); err != nil {
			return fmt.Errorf("moving restored file: %w", err)
		}
	} else if err := openFile(decrypt, tmpPath, outPath); err != nil {
		return err
	}

	s.logger.Info("backup restored", "device", s.opts.DeviceID, "path", outPath)
	return nil
}

func sealFile(enc Encryptor, src, dst string) error {
	return transform(src, dst, func(r io.Reader, w io.Writer) error {
		if err := enc.Encrypt(r, w); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
		return nil
	})
}

func openFile(dc DecryptionContext, src, dst string) error {
	err := transform(src, dst, func(r io.Reader, w io.Writer) error {
		if err := dc.Decrypt(r, w); err != nil {
			return fmt.Errorf("decrypting snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		os.Remove(dst)
	}
	return err
}

func transform(src, dst string, fn func(io.Reader, io.Writer) error) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if err := fn(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
