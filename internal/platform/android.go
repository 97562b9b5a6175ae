package platform

import (
	"errors"
	"fmt"

	"wake-go/internal/wake"
)

// ErrExactAlarmNotPermitted mirrors the SecurityException Android throws
// when an app without the exact-alarm grant schedules an exact alarm.
var ErrExactAlarmNotPermitted = errors.New("exact alarm permission not granted")

// Android API levels at which alarm-related behaviour changes.
const (
	apiExactAlarm         = 31 // SCHEDULE_EXACT_ALARM required
	apiNotificationPrompt = 33 // POST_NOTIFICATIONS runtime permission
	apiFullScreenIntent   = 34 // USE_FULL_SCREEN_INTENT needs a grant
	DefaultAndroidAPI     = 34
)

const (
	androidAlarmChannel  = "wake-alarms"
	androidSnoozeChannel = "wake-snooze"
)

type androidRules struct {
	api int
}

func (r androidRules) name() string { return "android" }

func (r androidRules) channels() []string {
	return []string{androidAlarmChannel, androidSnoozeChannel}
}

// defaults is the state of a fresh install. Exact alarms are denied by
// default only from Android 14.
func (r androidRules) defaults() permissions {
	p := permissions{
		wake.SettingsNotifications: wake.PermissionGranted,
		wake.SettingsExactAlarm:    wake.PermissionGranted,
		wake.SettingsFullScreen:    wake.PermissionGranted,
		wake.SettingsBattery:       wake.PermissionDenied,
	}
	if r.api >= apiNotificationPrompt {
		p[wake.SettingsNotifications] = wake.PermissionUndetermined
	}
	if r.api >= apiFullScreenIntent {
		p[wake.SettingsExactAlarm] = wake.PermissionDenied
		p[wake.SettingsFullScreen] = wake.PermissionDenied
	}
	return p
}

func (r androidRules) status(p permissions) wake.PermissionStatus {
	st := wake.PermissionStatus{
		Notifications:       orUndetermined(p[wake.SettingsNotifications]),
		ExactAlarms:         wake.PermissionGranted,
		FullScreenIntent:    wake.PermissionGranted,
		BatteryOptimization: orUndetermined(p[wake.SettingsBattery]),
	}
	if r.api < apiNotificationPrompt {
		st.Notifications = wake.PermissionGranted
	}
	if r.api >= apiExactAlarm {
		st.ExactAlarms = orUndetermined(p[wake.SettingsExactAlarm])
	}
	if r.api >= apiFullScreenIntent {
		st.FullScreenIntent = orUndetermined(p[wake.SettingsFullScreen])
	}
	return st
}

// prompt: below API 33 there is no prompt. A denied permission is not
// prompted for again; the user has to go through settings.
func (r androidRules) prompt(current, answer wake.PermissionState) wake.PermissionState {
	if current != wake.PermissionUndetermined {
		return current
	}
	return answer
}

func (r androidRules) admit(st *osState, req wake.ScheduleRequest) error {
	if r.status(st.Permissions).ExactAlarms != wake.PermissionGranted {
		return fmt.Errorf("%w (API %d)", ErrExactAlarmNotPermitted, r.api)
	}
	return nil
}

// NewAndroidPlatform simulates Android at the given API level.
func NewAndroidPlatform(apiLevel int) *Simulator {
	return newSimulator(androidRules{api: apiLevel}, &memoryStore{})
}

func orUndetermined(s wake.PermissionState) wake.PermissionState {
	if s == "" {
		return wake.PermissionUndetermined
	}
	return s
}
