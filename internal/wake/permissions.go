package wake

import "context"

// PermissionState is the grant state of one permission axis.
type PermissionState string

const (
	PermissionGranted      PermissionState = "granted"
	PermissionDenied       PermissionState = "denied"
	PermissionUndetermined PermissionState = "undetermined"
)

// ParsePermissionState accepts the three state names.
func ParsePermissionState(s string) (PermissionState, bool) {
	switch PermissionState(s) {
	case PermissionGranted, PermissionDenied, PermissionUndetermined:
		return PermissionState(s), true
	}
	return "", false
}

// PermissionStatus is a live snapshot of the four permission axes required
// for reliable alarm delivery. Platforms without an axis report it granted.
type PermissionStatus struct {
	Notifications       PermissionState
	ExactAlarms         PermissionState
	FullScreenIntent    PermissionState
	BatteryOptimization PermissionState
}

// UndeterminedStatus is the conservative snapshot used when a probe fails.
func UndeterminedStatus() PermissionStatus {
	return PermissionStatus{
		Notifications:       PermissionUndetermined,
		ExactAlarms:         PermissionUndetermined,
		FullScreenIntent:    PermissionUndetermined,
		BatteryOptimization: PermissionUndetermined,
	}
}

func (p PermissionStatus) CanNotify() bool { return p.Notifications == PermissionGranted }

func (p PermissionStatus) NeedsExactAlarmPermission() bool {
	return p.ExactAlarms != PermissionGranted
}

func (p PermissionStatus) NeedsFullScreenPermission() bool {
	return p.FullScreenIntent != PermissionGranted
}

func (p PermissionStatus) NeedsBatteryExemption() bool {
	return p.BatteryOptimization != PermissionGranted
}

func (p PermissionStatus) AllGranted() bool {
	return p.CanNotify() && !p.NeedsExactAlarmPermission() &&
		!p.NeedsFullScreenPermission() && !p.NeedsBatteryExemption()
}

// Missing lists the settings pages for axes that are not granted.
func (p PermissionStatus) Missing() []SettingsPage {
	var pages []SettingsPage
	if !p.CanNotify() {
		pages = append(pages, SettingsNotifications)
	}
	if p.NeedsExactAlarmPermission() {
		pages = append(pages, SettingsExactAlarm)
	}
	if p.NeedsFullScreenPermission() {
		pages = append(pages, SettingsFullScreen)
	}
	if p.NeedsBatteryExemption() {
		pages = append(pages, SettingsBattery)
	}
	return pages
}

// Gatekeeper queries and requests the OS permissions alarms depend on.
// It never caches a status and never lets a failing probe escape as an error.
type Gatekeeper struct {
	platform AlarmPlatform
	logger   Logger
}

func NewGatekeeper(platform AlarmPlatform, logger Logger) *Gatekeeper {
	return &Gatekeeper{platform: platform, logger: logger}
}

// CheckPermissions performs a live query. Failures degrade to undetermined.
func (g *Gatekeeper) CheckPermissions(ctx context.Context) PermissionStatus {
	status, err := g.platform.QueryPermissions(ctx)
	if err != nil {
		g.logger.Warn("permission query failed", "platform", g.platform.Name(), "error", err)
		return UndeterminedStatus()
	}
	return status
}

// RequestPermissions triggers the notification permission prompt and reports
// whether it ended up granted.
func (g *Gatekeeper) RequestPermissions(ctx context.Context) bool {
	state, err := g.platform.RequestNotificationPermission(ctx)
	if err != nil {
		g.logger.Warn("permission request failed", "platform", g.platform.Name(), "error", err)
		return false
	}
	g.logger.Info("notification permission requested", "state", string(state))
	return state == PermissionGranted
}

// OpenSettings deep-links into a settings page. There is no callback for the
// user changing something there; callers re-check afterwards.
func (g *Gatekeeper) OpenSettings(ctx context.Context, page SettingsPage) {
	if err := g.platform.OpenSettings(ctx, page); err != nil {
		g.logger.Warn("opening settings failed", "page", string(page), "error", err)
	}
}
