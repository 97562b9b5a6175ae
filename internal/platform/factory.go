package platform

import (
	"fmt"
	"path/filepath"

	"wake-go/internal/config"
)

// NewPlatformFromConfig creates the platform variant named by cfg.Type.
// With a state_dir set, android and ios keep their state in
// <state_dir>/<type>.json across runs.
func NewPlatformFromConfig(cfg config.PlatformConfig) (*Simulator, error) {
	var r rules
	switch cfg.Type {
	case "memory":
		return NewMemoryPlatform(), nil
	case "android":
		api := cfg.APILevel
		if api <= 0 {
			api = DefaultAndroidAPI
		}
		r = androidRules{api: api}
	case "ios":
		r = iosRules{}
	default:
		return nil, fmt.Errorf("unknown platform type: %s", cfg.Type)
	}

	if cfg.StateDir == "" {
		return newSimulator(r, &memoryStore{}), nil
	}
	return newSimulator(r, &fileStore{path: filepath.Join(cfg.StateDir, cfg.Type+".json")}), nil
}
