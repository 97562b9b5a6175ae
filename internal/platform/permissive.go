package platform

import "wake-go/internal/wake"

// memoryRules grants everything and enforces nothing. Combined with Faults
// it is the platform used in tests.
type memoryRules struct{}

func (memoryRules) name() string       { return "memory" }
func (memoryRules) channels() []string { return nil }

func (memoryRules) defaults() permissions {
	return permissions{
		wake.SettingsNotifications: wake.PermissionGranted,
		wake.SettingsExactAlarm:    wake.PermissionGranted,
		wake.SettingsFullScreen:    wake.PermissionGranted,
		wake.SettingsBattery:       wake.PermissionGranted,
	}
}

func (memoryRules) status(p permissions) wake.PermissionStatus {
	return wake.PermissionStatus{
		Notifications:       orUndetermined(p[wake.SettingsNotifications]),
		ExactAlarms:         orUndetermined(p[wake.SettingsExactAlarm]),
		FullScreenIntent:    orUndetermined(p[wake.SettingsFullScreen]),
		BatteryOptimization: orUndetermined(p[wake.SettingsBattery]),
	}
}

func (memoryRules) prompt(current, answer wake.PermissionState) wake.PermissionState {
	return answer
}

func (memoryRules) admit(*osState, wake.ScheduleRequest) error { return nil }

// NewMemoryPlatform creates an in-memory platform with every permission
// granted and no OS limits.
func NewMemoryPlatform() *Simulator {
	return newSimulator(memoryRules{}, &memoryStore{})
}
