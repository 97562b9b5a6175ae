package wake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Scheduler keeps the OS-level scheduled entries converged on the state
// derivable from the alarm list.
//
// Reconciliation only ever adds entries proven missing and removes entries
// proven stale. Missing entries are created before stale ones are cancelled,
// so an interrupted pass never leaves an enabled alarm with less coverage
// than it had before the pass started.
type Scheduler struct {
	platform AlarmPlatform
	logger   Logger
	clock    Clock
}

// NewScheduler creates a Scheduler over the given platform.
func NewScheduler(platform AlarmPlatform, logger Logger, clock Clock) *Scheduler {
	return &Scheduler{platform: platform, logger: logger, clock: clock}
}

// EntryHandle derives the OS handle for an entry. Equal inputs give equal
// handles, so repeated or concurrent scheduling replaces instead of duplicating.
func EntryHandle(kind EntryKind, alarmID string, fireAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", kind, alarmID, fireAt.Unix())
}

// OpFailure records one platform operation that failed during a pass.
type OpFailure struct {
	AlarmID string
	Handle  string
	Op      string // "compute", "schedule" or "cancel"
	Err     error
}

func (f OpFailure) Error() string {
	return fmt.Sprintf("%s alarm %s: %v", f.Op, f.AlarmID, f.Err)
}

// SyncPlan is the diff between desired and actual OS state.
type SyncPlan struct {
	Now     time.Time
	Create  []ScheduleRequest
	Cancel  []ScheduledAlarm
	Keep    []ScheduledAlarm
	Invalid []OpFailure

	// Desired maps each enabled, valid alarm to its next fire time.
	Desired map[string]time.Time
}

// Empty reports whether applying the plan would touch the platform.
func (p *SyncPlan) Empty() bool { return len(p.Create) == 0 && len(p.Cancel) == 0 }

// SyncReport summarises an applied plan.
type SyncReport struct {
	Created   int
	Cancelled int
	Unchanged int
	Failures  []OpFailure
}

// Err joins all failures, or returns nil.
func (r *SyncReport) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Initialize prepares platform channels/categories. Safe to call repeatedly.
func (s *Scheduler) Initialize(ctx context.Context) error {
	if err := s.platform.EnsureChannels(ctx); err != nil {
		return fmt.Errorf("ensuring notification channels: %w", err)
	}
	s.logger.Debug("scheduler initialized", "platform", s.platform.Name())
	return nil
}

// Plan enumerates the OS entries and diffs them against alarms without
// changing anything.
func (s *Scheduler) Plan(ctx context.Context, alarms []*Alarm) (*SyncPlan, error) {
	entries, err := s.platform.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled entries: %w", err)
	}
	return planSync(s.clock.Now(), alarms, entries), nil
}

// SyncAlarms reconciles the OS entries with alarms. A failure of one
// operation is recorded in the report and does not stop the others; only a
// failure to enumerate the current OS state is returned as an error.
func (s *Scheduler) SyncAlarms(ctx context.Context, alarms []*Alarm) (*SyncReport, error) {
	plan, err := s.Plan(ctx, alarms)
	if err != nil {
		return nil, err
	}
	report := s.apply(ctx, plan)
	s.logger.Info("alarms synced",
		"created", report.Created,
		"cancelled", report.Cancelled,
		"unchanged", report.Unchanged,
		"failed", len(report.Failures))
	return report, nil
}

// ScheduleAlarm reconciles a single alarm. A disabled alarm is cancelled.
// Validation errors in the alarm are returned directly.
func (s *Scheduler) ScheduleAlarm(ctx context.Context, alarm *Alarm) (*SyncReport, error) {
	if !alarm.Enabled {
		return s.CancelAlarm(ctx, alarm.ID)
	}
	if err := alarm.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.entriesFor(ctx, alarm.ID)
	if err != nil {
		return nil, err
	}
	plan := planSync(s.clock.Now(), []*Alarm{alarm}, entries)
	report := s.apply(ctx, plan)
	return report, report.Err()
}

// CancelAlarm removes every OS entry belonging to alarmID.
func (s *Scheduler) CancelAlarm(ctx context.Context, alarmID string) (*SyncReport, error) {
	entries, err := s.entriesFor(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	plan := &SyncPlan{Now: s.clock.Now(), Cancel: entries}
	report := s.apply(ctx, plan)
	return report, report.Err()
}

// ScheduleSnooze adds a one-off re-fire of alarm at the given time.
func (s *Scheduler) ScheduleSnooze(ctx context.Context, alarm *Alarm, at time.Time) (string, error) {
	req := ScheduleRequest{
		Handle:   EntryHandle(KindSnooze, alarm.ID, at),
		Kind:     KindSnooze,
		FireAt:   at,
		Payload:  alarm.Payload(),
		Revision: alarm.Revision(),
	}
	handle, err := s.platform.ScheduleAt(ctx, req)
	if err != nil {
		return "", fmt.Errorf("scheduling snooze for alarm %s: %w", alarm.ID, err)
	}
	s.logger.Info("snooze scheduled", "alarm", alarm.ID, "fire_at", at.Format(time.RFC3339))
	return handle, nil
}

// ClearDelivered removes alarmID's delivered notifications once the user
// has acted on them. Pending entries are untouched.
func (s *Scheduler) ClearDelivered(ctx context.Context, alarmID string) (*SyncReport, error) {
	entries, err := s.entriesFor(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	plan := &SyncPlan{Now: s.clock.Now()}
	for _, e := range entries {
		if e.Delivered {
			plan.Cancel = append(plan.Cancel, e)
		}
	}
	report := s.apply(ctx, plan)
	return report, report.Err()
}

func (s *Scheduler) entriesFor(ctx context.Context, alarmID string) ([]ScheduledAlarm, error) {
	all, err := s.platform.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled entries: %w", err)
	}
	var out []ScheduledAlarm
	for _, e := range all {
		if e.Payload.AlarmID == alarmID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Scheduler) apply(ctx context.Context, plan *SyncPlan) *SyncReport {
	report := &SyncReport{Unchanged: len(plan.Keep)}
	report.Failures = append(report.Failures, plan.Invalid...)
	for _, f := range plan.Invalid {
		s.logger.Error("cannot compute next trigger", "alarm", f.AlarmID, "error", f.Err)
	}

	cancelled := make(map[string]bool)
	for _, req := range plan.Create {
		_, err := s.platform.ScheduleAt(ctx, req)
		if err != nil {
			// A full OS queue may have room once this alarm's own stale
			// entries are gone.
			stale := staleEntriesOf(plan.Cancel, req.Payload.AlarmID, cancelled)
			if len(stale) > 0 {
				s.logger.Warn("scheduling alarm failed, retrying after cancelling its stale entries", "alarm", req.Payload.AlarmID, "stale", len(stale), "error", err)
				for _, e := range stale {
					cancelled[e.Handle] = true
					s.cancelEntry(ctx, e, report)
				}
				_, err = s.platform.ScheduleAt(ctx, req)
			}
		}
		if err != nil {
			s.logger.Error("scheduling alarm failed", "alarm", req.Payload.AlarmID, "handle", req.Handle, "error", err)
			report.Failures = append(report.Failures, OpFailure{AlarmID: req.Payload.AlarmID, Handle: req.Handle, Op: "schedule", Err: err})
			continue
		}
		s.logger.Debug("alarm scheduled", "alarm", req.Payload.AlarmID, "fire_at", req.FireAt.Format(time.RFC3339))
		report.Created++
	}

	for _, e := range plan.Cancel {
		if cancelled[e.Handle] {
			continue
		}
		s.cancelEntry(ctx, e, report)
	}

	return report
}

func (s *Scheduler) cancelEntry(ctx context.Context, e ScheduledAlarm, report *SyncReport) {
	if err := s.platform.Cancel(ctx, e.Handle); err != nil {
		s.logger.Error("cancelling alarm failed", "alarm", e.Payload.AlarmID, "handle", e.Handle, "error", err)
		report.Failures = append(report.Failures, OpFailure{AlarmID: e.Payload.AlarmID, Handle: e.Handle, Op: "cancel", Err: err})
		return
	}
	s.logger.Debug("alarm entry cancelled", "alarm", e.Payload.AlarmID, "handle", e.Handle)
	report.Cancelled++
}

func staleEntriesOf(entries []ScheduledAlarm, alarmID string, skip map[string]bool) []ScheduledAlarm {
	var out []ScheduledAlarm
	for _, e := range entries {
		if e.Payload.AlarmID == alarmID && !skip[e.Handle] {
			out = append(out, e)
		}
	}
	return out
}

// planSync is the pure diff at the heart of reconciliation.
//
// Entries without an alarmId do not carry this app's payload and are ignored.
// Entries for alarms whose next trigger cannot be computed are left in place:
// the alarm is a configuration error to surface, not a reason to drop
// whatever coverage it still has.
func planSync(now time.Time, alarms []*Alarm, entries []ScheduledAlarm) *SyncPlan {
	plan := &SyncPlan{Now: now, Desired: make(map[string]time.Time)}

	byID := make(map[string]*Alarm, len(alarms))
	invalid := make(map[string]bool)
	desired := make(map[string]ScheduleRequest)
	for _, a := range alarms {
		byID[a.ID] = a
		if !a.Enabled {
			continue
		}
		fireAt, err := NextTrigger(a, now)
		if err != nil {
			invalid[a.ID] = true
			plan.Invalid = append(plan.Invalid, OpFailure{AlarmID: a.ID, Op: "compute", Err: err})
			continue
		}
		plan.Desired[a.ID] = fireAt
		desired[a.ID] = ScheduleRequest{
			Handle:   EntryHandle(KindAlarm, a.ID, fireAt),
			Kind:     KindAlarm,
			FireAt:   fireAt,
			Payload:  a.Payload(),
			Revision: a.Revision(),
		}
	}

	sorted := append([]ScheduledAlarm(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Handle < sorted[j].Handle })

	satisfied := make(map[string]bool)
	for _, e := range sorted {
		id := e.Payload.AlarmID
		if id == "" {
			continue
		}
		alarm, ok := byID[id]
		switch {
		case !ok || !alarm.Enabled:
			plan.Cancel = append(plan.Cancel, e)
		case invalid[id]:
			plan.Keep = append(plan.Keep, e)
		case e.Delivered || e.Kind == KindSnooze:
			if e.Revision == alarm.Revision() {
				plan.Keep = append(plan.Keep, e)
			} else {
				plan.Cancel = append(plan.Cancel, e)
			}
		default:
			want := desired[id]
			if !satisfied[id] && e.FireAt.Equal(want.FireAt) && e.Revision == want.Revision {
				satisfied[id] = true
				plan.Keep = append(plan.Keep, e)
			} else {
				plan.Cancel = append(plan.Cancel, e)
			}
		}
	}

	ids := make([]string, 0, len(desired))
	for id := range desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !satisfied[id] {
			plan.Create = append(plan.Create, desired[id])
		}
	}

	return plan
}
