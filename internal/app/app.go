package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"wake-go/internal/boot"
	"wake-go/internal/config"
	"wake-go/internal/database"
	"wake-go/internal/encryption"
	"wake-go/internal/fs"
	"wake-go/internal/platform"
	"wake-go/internal/vault"
	"wake-go/internal/wake"
)

// WakeApp is the application layer between the CLI and WakeService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings, and manages the DB lifecycle on Close.
type WakeApp struct {
	cfg        *config.Config
	repo       *database.SQLiteRepository
	platform   *platform.Simulator
	vault      wake.Vault
	encryptor  wake.Encryptor
	navigator  *ScreenNavigator
	service    *wake.WakeService
	logger     wake.Logger
	clock      wake.Clock
	challenges challengeFactory
	op         *Operation
	logFile    *os.File
}

// Options tweak how a WakeApp is built.
type Options struct {
	// Verbose also sends debug and info logs to stderr.
	Verbose bool
}

// NewWakeApp creates a fully wired WakeApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateAlarm", "Sync").
// The caller must call Close when done.
func NewWakeApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*WakeApp, error) {
	return newWakeApp(ctx, cfg, operation, opts, wake.RealClock{}, wake.UUIDGenerator{})
}

func newWakeApp(ctx context.Context, cfg *config.Config, operation string, opts Options, clock wake.Clock, idgen wake.IDGenerator) (*WakeApp, error) {
	repo, err := database.NewRepositoryFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := repo.CheckMigrations(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("database schema out of date, run 'wake config init': %w", err)
	}

	p, err := platform.NewPlatformFromConfig(cfg.Platform)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("creating platform: %w", err)
	}

	var v wake.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	routeRetry := wake.DefaultRouteRetry
	if cfg.Alarms.RouteRetries > 0 {
		routeRetry.MaxAttempts = cfg.Alarms.RouteRetries
	}

	nav := NewScreenNavigator()
	svc := wake.NewWakeService(repo, p, nav, logger, clock, idgen, wake.Options{
		DeviceID:   cfg.DeviceID,
		Snooze:     cfg.Alarms.Snooze(),
		RouteRetry: routeRetry,
		Vault:      v,
		Encryptor:  enc,
	})

	if err := svc.Scheduler().Initialize(ctx); err != nil {
		logFile.Close()
		repo.Close()
		return nil, err
	}

	return &WakeApp{
		cfg:        cfg,
		repo:       repo,
		platform:   p,
		vault:      v,
		encryptor:  enc,
		navigator:  nav,
		service:    svc,
		logger:     logger,
		clock:      clock,
		challenges: newMathChallenges(),
		op:         NewOperation(operation, "", clock.Now()),
		logFile:    logFile,
	}, nil
}

// InitStorage prepares a fresh install: the database schema and, when
// passphrase is non-empty and no keys exist yet, the backup key pair.
func InitStorage(cfg *config.Config, passphrase string) error {
	repo, err := database.NewRepositoryFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer repo.Close()
	if err := repo.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	if passphrase == "" {
		return nil
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc.IsConfigured() {
		return nil
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption keys: %w", err)
	}
	return nil
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only commands that change something call it.
func (a *WakeApp) persistOperation(ctx context.Context, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	id, err := a.repo.CreateOperation(ctx, a.op.Name, a.op.Parameters, a.op.StartedAt)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// AlarmInput holds the raw fields of `wake alarm add`.
type AlarmInput struct {
	Label         string
	Time          string
	Period        string
	Schedule      string
	Challenge     string
	ChallengeIcon string
	ChallengeType string
	Difficulty    string
	Disabled      bool
}

func (in AlarmInput) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", in.Time, in.Period, in.Schedule))
}

// CreateAlarm parses the input, stores the alarm and schedules it.
func (a *WakeApp) CreateAlarm(ctx context.Context, in AlarmInput) (*wake.Alarm, error) {
	if err := a.persistOperation(ctx, in.String()); err != nil {
		return nil, err
	}
	period, err := wake.ParsePeriod(in.Period)
	if err != nil {
		return nil, a.op.Record(err)
	}
	difficulty, err := a.parseDifficulty(in.Difficulty)
	if err != nil {
		return nil, a.op.Record(err)
	}
	schedule := in.Schedule
	if schedule == "" {
		schedule = wake.ScheduleOnce
	}

	alarm, err := a.service.CreateAlarm(ctx, &wake.Alarm{
		Label:         in.Label,
		Time:          in.Time,
		Period:        period,
		Schedule:      schedule,
		Enabled:       !in.Disabled,
		Challenge:     in.Challenge,
		ChallengeIcon: in.ChallengeIcon,
		ChallengeType: in.ChallengeType,
		Difficulty:    difficulty,
	})
	return alarm, a.op.Record(err)
}

// AlarmEdit holds the fields of `wake alarm edit` that were set.
type AlarmEdit struct {
	Label      *string
	Time       *string
	Period     *string
	Schedule   *string
	Challenge  *string
	Difficulty *string
}

// EditAlarm applies the set fields of edit to an existing alarm.
func (a *WakeApp) EditAlarm(ctx context.Context, id string, edit AlarmEdit) (*wake.Alarm, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	alarm, err := a.service.GetAlarm(ctx, id)
	if err != nil {
		return nil, a.op.Record(err)
	}

	if edit.Label != nil {
		alarm.Label = *edit.Label
	}
	if edit.Time != nil {
		alarm.Time = *edit.Time
	}
	if edit.Period != nil {
		p, err := wake.ParsePeriod(*edit.Period)
		if err != nil {
			return nil, a.op.Record(err)
		}
		alarm.Period = p
	}
	if edit.Schedule != nil {
		alarm.Schedule = *edit.Schedule
	}
	if edit.Challenge != nil {
		alarm.Challenge = *edit.Challenge
	}
	if edit.Difficulty != nil {
		d, err := a.parseDifficulty(*edit.Difficulty)
		if err != nil {
			return nil, a.op.Record(err)
		}
		alarm.Difficulty = d
	}

	updated, err := a.service.UpdateAlarm(ctx, alarm)
	return updated, a.op.Record(err)
}

// dismissDifficulty is the alarm's own difficulty, or the configured
// default when the alarm is unknown.
func (a *WakeApp) dismissDifficulty(ctx context.Context, alarmID string) (wake.Difficulty, error) {
	alarm, err := a.repo.GetAlarm(ctx, alarmID)
	if err != nil {
		a.logger.Warn("alarm lookup failed, using default difficulty", "alarm", alarmID, "error", err)
	}
	if alarm != nil && alarm.Difficulty != "" {
		return alarm.Difficulty, nil
	}
	d, err := a.parseDifficulty("")
	if err != nil {
		return "", fmt.Errorf("default difficulty: %w", err)
	}
	return d, nil
}

func (a *WakeApp) parseDifficulty(raw string) (wake.Difficulty, error) {
	if raw == "" {
		raw = a.cfg.Alarms.DefaultDifficulty
	}
	switch d := wake.Difficulty(strings.ToLower(raw)); d {
	case "":
		return wake.DifficultyMedium, nil
	case wake.DifficultyEasy, wake.DifficultyMedium, wake.DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (easy, medium, hard)", raw)
	}
}

// SetEnabled turns an alarm on or off.
func (a *WakeApp) SetEnabled(ctx context.Context, id string, enabled bool) (*wake.Alarm, error) {
	if err := a.persistOperation(ctx, fmt.Sprintf("%s enabled=%t", id, enabled)); err != nil {
		return nil, err
	}
	alarm, err := a.service.SetEnabled(ctx, id, enabled)
	return alarm, a.op.Record(err)
}

// DeleteAlarm removes an alarm and its OS entries.
func (a *WakeApp) DeleteAlarm(ctx context.Context, id string) error {
	if err := a.persistOperation(ctx, id); err != nil {
		return err
	}
	return a.op.Record(a.service.DeleteAlarm(ctx, id))
}

// ListAlarms returns all alarms, oldest first.
func (a *WakeApp) ListAlarms(ctx context.Context) ([]*wake.Alarm, error) {
	return a.service.ListAlarms(ctx)
}

// Sync reconciles every alarm with the OS.
func (a *WakeApp) Sync(ctx context.Context) (*wake.SyncReport, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return nil, err
	}
	report, err := a.service.Sync(ctx)
	if err == nil {
		err = report.Err()
		if err != nil {
			// Per-alarm failures are in the report; the next sync retries them.
			a.op.Record(err)
			return report, nil
		}
	}
	return report, a.op.Record(err)
}

// Status reports per-alarm reconciliation state without changing anything.
func (a *WakeApp) Status(ctx context.Context) (*wake.StatusReport, error) {
	return a.service.Status(ctx)
}

// Boot runs the launch sequence after login: channels, permission probe,
// full repair sync and the cold-start check.
func (a *WakeApp) Boot(ctx context.Context) error {
	if err := a.persistOperation(ctx, ""); err != nil {
		return err
	}
	return a.op.Record(a.service.Start(ctx))
}

// Open runs the launch sequence with the alarm screen mounted and returns
// the payload routed to it, or nil when the app was not opened from an
// alarm notification.
func (a *WakeApp) Open(ctx context.Context) (*wake.Payload, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return nil, err
	}
	var routed *wake.Payload
	a.navigator.Mount(func(p wake.Payload) error {
		routed = &p
		return nil
	})
	defer a.navigator.Unmount()

	if err := a.service.Start(ctx); err != nil {
		return nil, a.op.Record(err)
	}
	return routed, nil
}

// Snooze re-fires an alarm after the configured snooze interval.
func (a *WakeApp) Snooze(ctx context.Context, id string) (time.Time, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return time.Time{}, err
	}
	at, err := a.service.Snooze(ctx, id)
	return at, a.op.Record(err)
}

// AnswerFunc asks the user to solve prompt. attempt starts at 1.
type AnswerFunc func(prompt string, attempt int) (string, error)

// Ring presents the dismiss challenge for a trigger link and keeps ringer
// going until answer produces a correct solution.
func (a *WakeApp) Ring(ctx context.Context, link string, ringer wake.Ringer, answer AnswerFunc) (*wake.AlarmCompletion, error) {
	p, err := wake.ParseTriggerLink(link)
	if err != nil {
		return nil, err
	}
	return a.Dismiss(ctx, p, ringer, answer)
}

// Dismiss runs the challenge for p. Only a correct answer stops the ringer
// and records a completion.
func (a *WakeApp) Dismiss(ctx context.Context, p wake.Payload, ringer wake.Ringer, answer AnswerFunc) (*wake.AlarmCompletion, error) {
	if err := a.persistOperation(ctx, p.AlarmID); err != nil {
		return nil, err
	}

	difficulty, err := a.dismissDifficulty(ctx, p.AlarmID)
	if err != nil {
		return nil, a.op.Record(err)
	}
	challenge := a.challenges(p.WithDefaults().Type, difficulty)

	session, err := a.service.BeginDismiss(ctx, p, challenge, ringer)
	if err != nil {
		return nil, a.op.Record(err)
	}
	for session.State() != wake.DismissSolved {
		in, err := answer(session.Prompt(), session.Attempts()+1)
		if err != nil {
			// Abandoning the prompt silences this process only. Nothing is
			// recorded and the notification stays delivered, so reopening it
			// presents the challenge again.
			ringer.Stop()
			if errors.Is(err, context.Canceled) {
				err = errors.Join(wake.ErrUserCancelled, err)
			}
			return nil, a.op.Record(err)
		}
		if _, err := session.Submit(in); err != nil {
			// Same as an abandoned prompt: the alarm is not dismissed.
			ringer.Stop()
			return nil, a.op.Record(err)
		}
	}

	completion, err := a.service.FinishDismiss(ctx, session)
	return completion, a.op.Record(err)
}

// Permissions returns a live permission snapshot.
func (a *WakeApp) Permissions(ctx context.Context) wake.PermissionStatus {
	return a.service.Gatekeeper().CheckPermissions(ctx)
}

// RequestPermissions shows the notification prompt.
func (a *WakeApp) RequestPermissions(ctx context.Context) bool {
	return a.service.Gatekeeper().RequestPermissions(ctx)
}

// OpenSettings deep-links into a settings page by name.
func (a *WakeApp) OpenSettings(ctx context.Context, page string) error {
	sp, err := parseSettingsPage(page)
	if err != nil {
		return err
	}
	a.service.Gatekeeper().OpenSettings(ctx, sp)
	return nil
}

var settingsPages = []wake.SettingsPage{
	wake.SettingsNotifications,
	wake.SettingsExactAlarm,
	wake.SettingsFullScreen,
	wake.SettingsBattery,
}

func parseSettingsPage(raw string) (wake.SettingsPage, error) {
	for _, p := range settingsPages {
		if strings.EqualFold(raw, string(p)) {
			return p, nil
		}
	}
	names := make([]string, len(settingsPages))
	for i, p := range settingsPages {
		names[i] = string(p)
	}
	return "", fmt.Errorf("unknown settings page %q (%s)", raw, strings.Join(names, ", "))
}

// History returns up to limit completions with their summary.
func (a *WakeApp) History(ctx context.Context, limit int) (*wake.History, error) {
	return a.service.GetHistory(ctx, limit)
}

// Operations returns the most recent CLI operations.
func (a *WakeApp) Operations(ctx context.Context, limit int) ([]*database.Operation, error) {
	return a.repo.ListOperations(ctx, limit)
}

// Backup seals the alarm database and uploads it to the first vault.
func (a *WakeApp) Backup(ctx context.Context) (*wake.BackupResult, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return nil, err
	}
	res, err := a.service.Backup(ctx)
	return res, a.op.Record(err)
}

// CheckVault verifies the configured vault is reachable.
func (a *WakeApp) CheckVault(ctx context.Context) error {
	if a.vault == nil {
		return wake.ErrNoVault
	}
	return a.vault.ValidateSetup(ctx)
}

// Restore downloads this device's snapshot to rawOut, which must not exist.
func (a *WakeApp) Restore(ctx context.Context, passphrase, rawOut string) (string, error) {
	out, err := fs.ResolveOutput(rawOut)
	if err != nil {
		return "", err
	}
	if err := a.service.RestoreBackup(ctx, passphrase, out); err != nil {
		return "", err
	}
	return out, nil
}

// NeedsPassphrase reports whether Restore will ask for the key passphrase.
func (a *WakeApp) NeedsPassphrase() bool {
	_, isTest := a.encryptor.(*encryption.TestEncryptor)
	return !isTest
}

// OSEntries lists the simulated OS's pending and delivered notifications.
func (a *WakeApp) OSEntries(ctx context.Context) ([]wake.ScheduledAlarm, error) {
	return a.platform.ListScheduled(ctx)
}

// OSFire delivers every entry due now.
func (a *WakeApp) OSFire(ctx context.Context) ([]wake.ScheduledAlarm, error) {
	return a.platform.Fire(ctx, a.clock.Now())
}

// OSPress taps a delivered notification while the app is closed, so the
// next `wake open` starts from it.
func (a *WakeApp) OSPress(ctx context.Context, handle string) (*wake.Payload, error) {
	return a.platform.Press(ctx, handle)
}

// OSAction presses a notification button. Snooze is handled by a
// background receiver, so the app is started for it first.
func (a *WakeApp) OSAction(ctx context.Context, handle, action string) (*wake.Payload, error) {
	typ := wake.NotificationEventType(strings.ToLower(action))
	if typ == wake.NotificationSnooze {
		if err := a.persistOperation(ctx, handle); err != nil {
			return nil, err
		}
		if err := a.service.Start(ctx); err != nil {
			return nil, a.op.Record(err)
		}
	}
	p, err := a.platform.Action(ctx, handle, typ)
	return p, a.op.Record(err)
}

// OSGrant changes a permission axis as the user would in system settings.
func (a *WakeApp) OSGrant(axis, state string) error {
	sp, err := parseSettingsPage(axis)
	if err != nil {
		return err
	}
	ps, ok := wake.ParsePermissionState(strings.ToLower(state))
	if !ok {
		return fmt.Errorf("unknown permission state %q (granted, denied, undetermined)", state)
	}
	return a.platform.Grant(sp, ps)
}

// SetAutostart registers or removes the login item running `wake boot`.
func (a *WakeApp) SetAutostart(enable bool) error {
	entry, err := boot.NewAutostartEntry()
	if err != nil {
		return err
	}
	return boot.NewRegistrar(entry, a.logger).Sync(enable)
}

// Close finishes the operation record and closes all resources.
func (a *WakeApp) Close() error {
	var firstErr error

	a.service.Close()

	if a.op.Persisted() {
		if err := a.repo.FinishOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.repo.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
