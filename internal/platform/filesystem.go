package platform

import (
	"encoding/json"
	"fmt"
	"os"

	"wake-go/internal/fs"
)

// fileStore keeps state in a JSON file so that it survives across process
// runs, the way the OS notification store outlives the app.
type fileStore struct {
	path string
}

func (f *fileStore) Load() (*osState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading platform state: %w", err)
	}
	var st osState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing platform state %s: %w", f.path, err)
	}
	return &st, nil
}

func (f *fileStore) Save(st *osState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding platform state: %w", err)
	}
	if err := fs.WriteBytesAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing platform state: %w", err)
	}
	return nil
}
