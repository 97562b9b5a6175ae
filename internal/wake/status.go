package wake

import (
	"context"
	"fmt"
	"time"
)

// SyncState classifies one alarm against the OS entries.
type SyncState string

const (
	StateInSync   SyncState = "in-sync"
	StateMissing  SyncState = "missing"
	StateStale    SyncState = "stale"
	StateDisabled SyncState = "disabled"
	StateInvalid  SyncState = "invalid"
)

// AlarmStatus describes one alarm for `wake status`.
type AlarmStatus struct {
	Alarm       *Alarm
	NextTrigger time.Time
	State       SyncState
	Entries     []ScheduledAlarm
	Err         error
}

// StatusReport is a read-only view of reconciliation.
type StatusReport struct {
	Now         time.Time
	Platform    string
	Permissions PermissionStatus
	Alarms      []*AlarmStatus

	// Orphans are entries whose alarm no longer exists.
	Orphans []ScheduledAlarm
}

// Status computes what a sync would do, per alarm, without changing
// anything on the platform.
func (s *WakeService) Status(ctx context.Context) (*StatusReport, error) {
	alarms, err := s.repo.ListAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing alarms: %w", err)
	}
	entries, err := s.platform.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled entries: %w", err)
	}
	now := s.clock.Now()
	plan := planSync(now, alarms, entries)

	report := &StatusReport{
		Now:         now,
		Platform:    s.platform.Name(),
		Permissions: s.gatekeeper.CheckPermissions(ctx),
	}

	byAlarm := make(map[string][]ScheduledAlarm)
	known := make(map[string]bool, len(alarms))
	for _, a := range alarms {
		known[a.ID] = true
	}
	for _, e := range entries {
		id := e.Payload.AlarmID
		if id == "" {
			continue
		}
		if !known[id] {
			report.Orphans = append(report.Orphans, e)
			continue
		}
		byAlarm[id] = append(byAlarm[id], e)
	}

	creating := make(map[string]bool)
	for _, req := range plan.Create {
		creating[req.Payload.AlarmID] = true
	}
	cancelling := make(map[string]bool)
	for _, e := range plan.Cancel {
		cancelling[e.Payload.AlarmID] = true
	}
	invalid := make(map[string]error)
	for _, f := range plan.Invalid {
		invalid[f.AlarmID] = f.Err
	}

	for _, a := range alarms {
		st := &AlarmStatus{Alarm: a, Entries: byAlarm[a.ID], NextTrigger: plan.Desired[a.ID]}
		switch {
		case invalid[a.ID] != nil:
			st.State = StateInvalid
			st.Err = invalid[a.ID]
		case !a.Enabled:
			st.State = StateDisabled
			if cancelling[a.ID] {
				st.State = StateStale
			}
		case cancelling[a.ID]:
			st.State = StateStale
		case creating[a.ID]:
			st.State = StateMissing
		default:
			st.State = StateInSync
		}
		report.Alarms = append(report.Alarms, st)
	}
	return report, nil
}
