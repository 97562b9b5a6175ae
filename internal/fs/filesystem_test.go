package fs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("writes and replaces", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "state.json")

		if err := WriteBytesAtomic(path, []byte("one"), 0o600); err != nil {
			t.Fatalf("WriteBytesAtomic() error = %v", err)
		}
		if err := WriteBytesAtomic(path, []byte("two"), 0o600); err != nil {
			t.Fatalf("second WriteBytesAtomic() error = %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "two" {
			t.Errorf("content = %q, want %q", got, "two")
		}
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0o600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("size mismatch leaves old content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "blob")
		if err := WriteBytesAtomic(path, []byte("keep"), 0o644); err != nil {
			t.Fatal(err)
		}

		err := WriteFileAtomic(path, strings.NewReader("short"), 99, 0o644)
		if err == nil {
			t.Fatal("WriteFileAtomic() expected size mismatch error")
		}

		got, _ := os.ReadFile(path)
		if string(got) != "keep" {
			t.Errorf("content = %q, want old content", got)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("dir has %d entries, want 1 (temp file not cleaned)", len(entries))
		}
	})

	t.Run("negative size skips check", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blob")
		if err := WriteFileAtomic(path, strings.NewReader("any"), -1, 0o644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}
	})
}

func TestCopyTo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := CopyTo(path, &buf); err != nil {
		t.Fatalf("CopyTo() error = %v", err)
	}
	if buf.String() != "data" {
		t.Errorf("CopyTo() = %q, want data", buf.String())
	}

	if err := CopyTo(filepath.Join(dir, "missing"), &buf); !errors.Is(err, ErrNotExist) {
		t.Errorf("CopyTo(missing) error = %v, want ErrNotExist", err)
	}
}

func TestResolveOutput(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "new file", path: filepath.Join(dir, "new.db")},
		{name: "existing file", path: existing, wantErr: true},
		{name: "missing parent", path: filepath.Join(dir, "nope", "new.db"), wantErr: true},
		{name: "parent is a file", path: filepath.Join(existing, "new.db"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOutput(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !filepath.IsAbs(got) {
				t.Errorf("ResolveOutput() = %q, want absolute path", got)
			}
		})
	}
}
