package wake

import (
	"context"
	"time"
)

// Payload is attached to every OS-level alarm entry and comes back to the app
// when the notification fires or is opened.
type Payload struct {
	AlarmID       string `json:"alarmId"`
	Time          string `json:"time"`
	Period        Period `json:"period"`
	Challenge     string `json:"challenge"`
	ChallengeIcon string `json:"challengeIcon"`
	Type          string `json:"type"`
}

// EntryKind distinguishes the primary alarm entry from snooze re-fires.
type EntryKind string

const (
	KindAlarm  EntryKind = "alarm"
	KindSnooze EntryKind = "snooze"
)

// ScheduleRequest describes one entry to hand to the OS scheduler.
// Handle is chosen by the caller; scheduling under an existing handle replaces
// that entry rather than adding a second one.
type ScheduleRequest struct {
	Handle   string
	Kind     EntryKind
	FireAt   time.Time
	Payload  Payload
	Revision string
}

// ScheduledAlarm is an entry living inside the OS notification/alarm
// subsystem. Delivered entries have fired but the user has not acted on them.
type ScheduledAlarm struct {
	Handle    string
	Kind      EntryKind
	FireAt    time.Time
	Payload   Payload
	Revision  string
	Delivered bool
}

// NotificationEventType enumerates the OS callbacks the app reacts to.
type NotificationEventType string

const (
	NotificationDelivered NotificationEventType = "delivered"
	NotificationPressed   NotificationEventType = "pressed"
	NotificationSnooze    NotificationEventType = "action-snooze"
	NotificationDismiss   NotificationEventType = "action-dismiss"
)

// NotificationEvent is delivered to listeners registered with AlarmPlatform.Listen.
type NotificationEvent struct {
	Type    NotificationEventType
	Handle  string
	Payload Payload
}

// SettingsPage identifies an OS settings screen the app can deep-link into.
type SettingsPage string

const (
	SettingsNotifications SettingsPage = "notifications"
	SettingsExactAlarm    SettingsPage = "exact-alarm"
	SettingsFullScreen    SettingsPage = "full-screen"
	SettingsBattery       SettingsPage = "battery"
)

// AlarmPlatform is the capability interface over the native notification and
// alarm subsystem. One variant per OS is chosen at process start; the
// scheduler, gatekeeper and trigger handler are written against this only.
type AlarmPlatform interface {
	// Name identifies the variant ("android", "ios", ...).
	Name() string

	// EnsureChannels creates notification channels/categories. Idempotent.
	EnsureChannels(ctx context.Context) error

	// ScheduleAt registers an entry and returns its handle.
	ScheduleAt(ctx context.Context, req ScheduleRequest) (string, error)

	// Cancel removes a pending or delivered entry. Unknown handles are a no-op.
	Cancel(ctx context.Context, handle string) error

	// ListScheduled returns pending entries plus delivered entries the user
	// has not acted on yet.
	ListScheduled(ctx context.Context) ([]ScheduledAlarm, error)

	// InitialLaunchNotification returns the payload of the notification that
	// launched the process, or nil. It is consumed by the first call.
	InitialLaunchNotification(ctx context.Context) (*Payload, error)

	// Listen registers fn for notification callbacks until unsubscribe is called.
	Listen(fn func(NotificationEvent)) (unsubscribe func())

	// QueryPermissions reads the live permission state.
	QueryPermissions(ctx context.Context) (PermissionStatus, error)

	// RequestNotificationPermission shows the OS prompt and returns the result.
	RequestNotificationPermission(ctx context.Context) (PermissionState, error)

	// OpenSettings deep-links into an OS settings screen.
	OpenSettings(ctx context.Context, page SettingsPage) error
}
