package wake

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultSnooze is used when Options.Snooze is zero.
const DefaultSnooze = 5 * time.Minute

// Options tunes a WakeService. Zero values select defaults.
type Options struct {
	DeviceID   string
	Snooze     time.Duration
	RouteRetry RetryPolicy
	Transfer   RetryPolicy

	// Vault and Encryptor are only needed for Backup and RestoreBackup.
	Vault     Vault
	Encryptor Encryptor
}

// WakeService is the orchestration layer: it owns the alarm lifecycle and
// re-runs reconciliation after every mutation. All state it touches is
// passed in; there is no package-level state.
type WakeService struct {
	repo       AlarmRepository
	platform   AlarmPlatform
	scheduler  *Scheduler
	gatekeeper *Gatekeeper
	trigger    *TriggerHandler
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	opts       Options
}

// NewWakeService wires the scheduler, gatekeeper and trigger handler over the
// given collaborators.
func NewWakeService(repo AlarmRepository, platform AlarmPlatform, navigator Navigator, logger Logger, clock Clock, idgen IDGenerator, opts Options) *WakeService {
	if opts.Snooze <= 0 {
		opts.Snooze = DefaultSnooze
	}
	if opts.RouteRetry.MaxAttempts == 0 {
		opts.RouteRetry = DefaultRouteRetry
	}
	if opts.Transfer.MaxAttempts == 0 {
		opts.Transfer = DefaultRetryPolicy
	}

	trigger := NewTriggerHandler(platform, navigator, logger, clock, opts.RouteRetry)
	trigger.SetLookup(repo)

	s := &WakeService{
		repo:       repo,
		platform:   platform,
		scheduler:  NewScheduler(platform, logger, clock),
		gatekeeper: NewGatekeeper(platform, logger),
		trigger:    trigger,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		opts:       opts,
	}
	trigger.OnSnoozeAction(func(ctx context.Context, p Payload) error {
		_, err := s.Snooze(ctx, p.AlarmID)
		return err
	})
	return s
}

func (s *WakeService) Scheduler() *Scheduler { return s.scheduler }
func (s *WakeService) Gatekeeper() *Gatekeeper { return s.gatekeeper }
func (s *WakeService) Trigger() *TriggerHandler { return s.trigger }
func (s *WakeService) Platform() AlarmPlatform { return s.platform }
func (s *WakeService) Repository() AlarmRepository { return s.repo }

// Start is the launch sequence: channels, a permission probe, a full
// reconciliation (repairing anything a killed process left behind), then
// the cold-start notification check. It is safe to run on every launch.
func (s *WakeService) Start(ctx context.Context) error {
	if err := s.scheduler.Initialize(ctx); err != nil {
		return err
	}

	perms := s.gatekeeper.CheckPermissions(ctx)
	if !perms.AllGranted() {
		missing := make([]string, 0, 4)
		for _, p := range perms.Missing() {
			missing = append(missing, string(p))
		}
		s.logger.Warn("alarm delivery may be unreliable", "missing", strings.Join(missing, ","))
	}

	if _, err := s.Sync(ctx); err != nil {
		s.logger.Error("startup sync failed", "error", err)
	}

	return s.trigger.Start(ctx)
}

// Close unregisters platform listeners and subscribers.
func (s *WakeService) Close() {
	s.trigger.Cleanup()
}

// Sync reconciles every alarm with the platform.
func (s *WakeService) Sync(ctx context.Context) (*SyncReport, error) {
	alarms, err := s.repo.ListAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing alarms: %w", err)
	}
	return s.scheduler.SyncAlarms(ctx, alarms)
}

// ListAlarms returns all alarms.
func (s *WakeService) ListAlarms(ctx context.Context) ([]*Alarm, error) {
	return s.repo.ListAlarms(ctx)
}

// GetAlarm returns an alarm or an error if it does not exist.
func (s *WakeService) GetAlarm(ctx context.Context, id string) (*Alarm, error) {
	alarm, err := s.repo.GetAlarm(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding alarm: %w", err)
	}
	if alarm == nil {
		return nil, fmt.Errorf("alarm not found: %s", id)
	}
	return alarm, nil
}

// CreateAlarm validates, stores and schedules a new alarm.
// A scheduling failure is logged; the next sync repairs it.
func (s *WakeService) CreateAlarm(ctx context.Context, a *Alarm) (*Alarm, error) {
	applyChallengeDefaults(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	a.ID = s.idgen.New()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.repo.InsertAlarm(ctx, a); err != nil {
		return nil, fmt.Errorf("creating alarm: %w", err)
	}
	s.logger.Info("alarm created", "alarm", a.ID, "time", a.Time, "period", string(a.Period), "schedule", a.Schedule)

	s.scheduleOne(ctx, a)
	return a, nil
}

// UpdateAlarm stores edits to an existing alarm and reschedules it.
func (s *WakeService) UpdateAlarm(ctx context.Context, a *Alarm) (*Alarm, error) {
	existing, err := s.GetAlarm(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	applyChallengeDefaults(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}

	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateAlarm(ctx, a); err != nil {
		return nil, fmt.Errorf("updating alarm: %w", err)
	}
	s.logger.Info("alarm updated", "alarm", a.ID)

	s.scheduleOne(ctx, a)
	return a, nil
}

// SetEnabled toggles an alarm and schedules or cancels its entries.
func (s *WakeService) SetEnabled(ctx context.Context, id string, enabled bool) (*Alarm, error) {
	alarm, err := s.GetAlarm(ctx, id)
	if err != nil {
		return nil, err
	}
	if alarm.Enabled == enabled {
		s.scheduleOne(ctx, alarm)
		return alarm, nil
	}
	if enabled {
		if err := alarm.Validate(); err != nil {
			return nil, err
		}
	}

	alarm.Enabled = enabled
	alarm.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateAlarm(ctx, alarm); err != nil {
		return nil, fmt.Errorf("updating alarm: %w", err)
	}
	s.logger.Info("alarm toggled", "alarm", id, "enabled", enabled)

	s.scheduleOne(ctx, alarm)
	return alarm, nil
}

// DeleteAlarm removes the alarm record first, then its OS entries. If the
// process dies between the two, the next sync cancels the orphans.
func (s *WakeService) DeleteAlarm(ctx context.Context, id string) error {
	if _, err := s.GetAlarm(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteAlarm(ctx, id); err != nil {
		return fmt.Errorf("deleting alarm: %w", err)
	}
	s.logger.Info("alarm deleted", "alarm", id)

	if _, err := s.scheduler.CancelAlarm(ctx, id); err != nil {
		s.logger.Warn("cancelling deleted alarm failed; next sync will retry", "alarm", id, "error", err)
	}
	return nil
}

// Snooze schedules a re-fire after the configured snooze interval and ends
// the current trigger.
func (s *WakeService) Snooze(ctx context.Context, id string) (time.Time, error) {
	alarm, err := s.GetAlarm(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if !alarm.Enabled {
		return time.Time{}, fmt.Errorf("alarm is disabled: %s", id)
	}

	at := s.clock.Now().Add(s.opts.Snooze).Truncate(time.Second)
	if _, err := s.scheduler.ScheduleSnooze(ctx, alarm, at); err != nil {
		return time.Time{}, err
	}
	if _, err := s.scheduler.ClearDelivered(ctx, id); err != nil {
		s.logger.Warn("clearing delivered notification failed", "alarm", id, "error", err)
	}
	s.trigger.Complete(ctx, alarm.Payload(), EventSnoozed)
	return at, nil
}

// BeginDismiss presents the challenge for a routed alarm and starts ringing.
func (s *WakeService) BeginDismiss(ctx context.Context, p Payload, challenge Challenge, ringer Ringer) (*DismissSession, error) {
	if p.AlarmID == "" {
		return nil, ErrMalformedPayload
	}
	target := s.targetTime(ctx, p)
	return NewDismissSession(p, target, challenge, ringer, s.clock, s.idgen)
}

// FinishDismiss silences a solved session and records its completion.
func (s *WakeService) FinishDismiss(ctx context.Context, session *DismissSession) (*AlarmCompletion, error) {
	completion, err := session.Dismiss()
	if err != nil {
		return nil, err
	}
	if err := s.RecordCompletion(ctx, completion); err != nil {
		return completion, err
	}
	s.trigger.Complete(ctx, session.payload, EventDismissed)
	return completion, nil
}

// RecordCompletion appends a completion, disables a one-time alarm (it is
// kept, not deleted), clears its delivered notification and re-syncs so a
// repeating alarm moves on to its next occurrence.
func (s *WakeService) RecordCompletion(ctx context.Context, c *AlarmCompletion) error {
	if err := s.repo.InsertCompletion(ctx, c); err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}
	s.logger.Info("alarm completed", "alarm", c.AlarmID, "score", c.CognitiveScore, "reaction", c.ReactionTime.String())

	alarm, err := s.repo.GetAlarm(ctx, c.AlarmID)
	if err != nil {
		return fmt.Errorf("finding alarm: %w", err)
	}
	if alarm != nil && alarm.IsOnce() && alarm.Enabled {
		alarm.Enabled = false
		alarm.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateAlarm(ctx, alarm); err != nil {
			return fmt.Errorf("disabling one-time alarm: %w", err)
		}
		s.logger.Info("one-time alarm disabled", "alarm", alarm.ID)
	}

	if _, err := s.scheduler.ClearDelivered(ctx, c.AlarmID); err != nil {
		s.logger.Warn("clearing delivered notification failed", "alarm", c.AlarmID, "error", err)
	}
	if _, err := s.Sync(ctx); err != nil {
		s.logger.Error("sync after completion failed", "error", err)
	}
	return nil
}

// scheduleOne pushes a single alarm's state to the platform without a full
// pass. Failures are left for the next reconciliation.
func (s *WakeService) scheduleOne(ctx context.Context, a *Alarm) {
	if _, err := s.scheduler.ScheduleAlarm(ctx, a); err != nil {
		s.logger.Warn("scheduling alarm failed; next sync will retry", "alarm", a.ID, "error", err)
	}
}

// targetTime is when the alarm being dismissed was due: the fire time of its
// delivered entry if the platform still has it, otherwise the latest
// occurrence of its time of day at or before now.
func (s *WakeService) targetTime(ctx context.Context, p Payload) time.Time {
	now := s.clock.Now()
	if entries, err := s.platform.ListScheduled(ctx); err == nil {
		var latest time.Time
		for _, e := range entries {
			if e.Delivered && e.Payload.AlarmID == p.AlarmID && e.FireAt.After(latest) {
				latest = e.FireAt
			}
		}
		if !latest.IsZero() {
			return latest
		}
	}

	p = p.WithDefaults()
	minutes, err := TimeToMinutesOfDay(p.Time, p.Period)
	if err != nil {
		return now
	}
	y, m, d := now.Date()
	t := time.Date(y, m, d, minutes/60, minutes%60, 0, 0, now.Location())
	if t.After(now) {
		t = time.Date(y, m, d-1, minutes/60, minutes%60, 0, 0, now.Location())
	}
	return t
}

func applyChallengeDefaults(a *Alarm) {
	if a.Challenge == "" {
		a.Challenge = DefaultChallenge
	}
	if a.ChallengeIcon == "" {
		a.ChallengeIcon = DefaultChallengeIcon
	}
	if a.ChallengeType == "" {
		a.ChallengeType = DefaultChallengeType
	}
	if a.Difficulty == "" {
		a.Difficulty = DifficultyMedium
	}
}
