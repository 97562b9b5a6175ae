package wake_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"wake-go/internal/database"
	"wake-go/internal/platform"
	"wake-go/internal/testutil"
	"wake-go/internal/wake"
)

var fastRoute = wake.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func newAlarm(id, hhmm string, period wake.Period, schedule string) *wake.Alarm {
	a := &wake.Alarm{
		ID:            id,
		Time:          hhmm,
		Period:        period,
		Schedule:      schedule,
		Enabled:       true,
		Challenge:     wake.DefaultChallenge,
		ChallengeIcon: wake.DefaultChallengeIcon,
		ChallengeType: wake.DefaultChallengeType,
		Difficulty:    wake.DifficultyMedium,
	}
	return a
}

// scheduledFor builds the request the scheduler would make for a at fireAt.
func scheduledFor(a *wake.Alarm, kind wake.EntryKind, fireAt time.Time) wake.ScheduleRequest {
	return wake.ScheduleRequest{
		Handle:   wake.EntryHandle(kind, a.ID, fireAt),
		Kind:     kind,
		FireAt:   fireAt,
		Payload:  a.Payload(),
		Revision: a.Revision(),
	}
}

func mustSchedule(t *testing.T, p wake.AlarmPlatform, req wake.ScheduleRequest) {
	t.Helper()
	if _, err := p.ScheduleAt(context.Background(), req); err != nil {
		t.Fatalf("ScheduleAt(%s) error = %v", req.Handle, err)
	}
}

func listEntries(t *testing.T, p wake.AlarmPlatform) []wake.ScheduledAlarm {
	t.Helper()
	entries, err := p.ListScheduled(context.Background())
	if err != nil {
		t.Fatalf("ListScheduled() error = %v", err)
	}
	return entries
}

func entriesOf(entries []wake.ScheduledAlarm, alarmID string) []wake.ScheduledAlarm {
	var out []wake.ScheduledAlarm
	for _, e := range entries {
		if e.Payload.AlarmID == alarmID {
			out = append(out, e)
		}
	}
	return out
}

// opRecorder wraps a platform and records mutating calls in order.
type opRecorder struct {
	*platform.Simulator
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) ScheduleAt(ctx context.Context, req wake.ScheduleRequest) (string, error) {
	r.record("schedule " + req.Handle)
	return r.Simulator.ScheduleAt(ctx, req)
}

func (r *opRecorder) Cancel(ctx context.Context, handle string) error {
	r.record("cancel " + handle)
	return r.Simulator.Cancel(ctx, handle)
}

func (r *opRecorder) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// eventLog collects trigger events.
type eventLog struct {
	mu     sync.Mutex
	events []wake.Event
}

func (l *eventLog) add(ev wake.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []wake.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wake.EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	clock    *testutil.StubClock
	platform *platform.Simulator
	repo     *database.SQLiteRepository
	nav      *testutil.RecordingNavigator
	vault    wake.Vault
	svc      *wake.WakeService
	events   *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    testutil.FixedClock(),
		platform: testutil.NewTestPlatform(),
		repo:     testutil.NewTestRepository(t),
		nav:      testutil.NewRecordingNavigator(),
		vault:    testutil.NewTestVault(),
		events:   &eventLog{},
	}
	f.svc = wake.NewWakeService(f.repo, f.platform, f.nav, wake.NewNopLogger(), f.clock, testutil.NewStubIDGenerator(), wake.Options{
		DeviceID:   "test-device",
		RouteRetry: fastRoute,
		Transfer:   wake.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		Vault:      f.vault,
		Encryptor:  testutil.NewTestEncryptor(),
	})
	f.svc.Trigger().Subscribe(f.events.add)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) create(t *testing.T, hhmm string, period wake.Period, schedule string) *wake.Alarm {
	t.Helper()
	a, err := f.svc.CreateAlarm(context.Background(), &wake.Alarm{Time: hhmm, Period: period, Schedule: schedule, Enabled: true})
	if err != nil {
		t.Fatalf("CreateAlarm() error = %v", err)
	}
	return a
}
