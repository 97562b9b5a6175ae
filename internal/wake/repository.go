package wake

import "context"

// AlarmRepository is the keyed store holding alarms and their completion
// history. Nothing beyond full-list retrieval and key lookup is assumed.
type AlarmRepository interface {
	// ListAlarms returns every alarm, oldest first.
	ListAlarms(ctx context.Context) ([]*Alarm, error)

	// GetAlarm returns the alarm with the given ID, or nil if none exists.
	GetAlarm(ctx context.Context, id string) (*Alarm, error)

	InsertAlarm(ctx context.Context, alarm *Alarm) error
	UpdateAlarm(ctx context.Context, alarm *Alarm) error

	// DeleteAlarm removes an alarm. Completions for it are kept.
	DeleteAlarm(ctx context.Context, id string) error

	// InsertCompletion appends a completion record. Records are never updated.
	InsertCompletion(ctx context.Context, c *AlarmCompletion) error

	// ListCompletions returns up to limit completions, newest first.
	ListCompletions(ctx context.Context, limit int) ([]*AlarmCompletion, error)

	// BackupTo writes a consistent snapshot of the store to destPath.
	BackupTo(destPath string) error

	Close() error
}
