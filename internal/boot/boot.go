// Package boot registers the app to run at login. Pending OS alarms do not
// survive every reboot, so the registered command re-runs the startup sync.
package boot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"

	"wake-go/internal/wake"
)

// Entry is a login item that can be switched on and off.
type Entry interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}

// Registrar keeps the login item in line with the configured setting.
type Registrar struct {
	entry  Entry
	logger wake.Logger
}

func NewRegistrar(entry Entry, logger wake.Logger) *Registrar {
	return &Registrar{entry: entry, logger: logger}
}

// NewAutostartEntry builds the login item for the running executable,
// invoking it with the boot subcommand. Extra args come before it, such as
// a --config flag.
func NewAutostartEntry(args ...string) (*autostart.App, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("finding executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, fmt.Errorf("resolving executable: %w", err)
	}

	exec := append([]string{execPath}, args...)
	exec = append(exec, "boot")
	return &autostart.App{
		Name:        "wake",
		DisplayName: "Wake alarm re-sync",
		Exec:        exec,
	}, nil
}

// Sync enables or disables the entry. It does nothing when the entry is
// already in the wanted state.
func (r *Registrar) Sync(enable bool) error {
	if r.entry.IsEnabled() == enable {
		return nil
	}
	if enable {
		if err := r.entry.Enable(); err != nil {
			return fmt.Errorf("enabling autostart: %w", err)
		}
		r.logger.Info("autostart enabled")
		return nil
	}
	if err := r.entry.Disable(); err != nil {
		return fmt.Errorf("disabling autostart: %w", err)
	}
	r.logger.Info("autostart disabled")
	return nil
}

// Enabled reports whether the login item is installed.
func (r *Registrar) Enabled() bool { return r.entry.IsEnabled() }

var _ Entry = (*autostart.App)(nil)
