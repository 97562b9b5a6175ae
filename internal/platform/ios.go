package platform

import (
	"errors"
	"fmt"

	"wake-go/internal/wake"
)

// IOSPendingLimit is the number of pending local notification requests iOS
// keeps per app.
const IOSPendingLimit = 64

// ErrPendingLimit is returned when scheduling would exceed IOSPendingLimit.
var ErrPendingLimit = errors.New("pending notification limit reached")

const iosAlarmCategory = "WAKE_ALARM"

// iosRules only has the notification axis. There is no exact-alarm,
// full-screen or battery concept, so those report granted.
type iosRules struct{}

func (iosRules) name() string { return "ios" }

func (iosRules) channels() []string { return []string{iosAlarmCategory} }

func (iosRules) defaults() permissions {
	return permissions{wake.SettingsNotifications: wake.PermissionUndetermined}
}

func (iosRules) status(p permissions) wake.PermissionStatus {
	return wake.PermissionStatus{
		Notifications:       orUndetermined(p[wake.SettingsNotifications]),
		ExactAlarms:         wake.PermissionGranted,
		FullScreenIntent:    wake.PermissionGranted,
		BatteryOptimization: wake.PermissionGranted,
	}
}

// prompt is shown once. Afterwards only the settings app changes the answer.
func (iosRules) prompt(current, answer wake.PermissionState) wake.PermissionState {
	if current != wake.PermissionUndetermined {
		return current
	}
	return answer
}

func (iosRules) admit(st *osState, req wake.ScheduleRequest) error {
	if st.pending() >= IOSPendingLimit {
		return fmt.Errorf("%w (%d)", ErrPendingLimit, IOSPendingLimit)
	}
	return nil
}

// NewIOSPlatform simulates iOS local notifications.
func NewIOSPlatform() *Simulator {
	return newSimulator(iosRules{}, &memoryStore{})
}
