package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wake-go/internal/config"
	"wake-go/internal/testutil"
	"wake-go/internal/wake"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig("dev-1", dir)
	cfg.Platform = config.PlatformConfig{Type: "memory"}
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "mem"}}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	if err := InitStorage(cfg, ""); err != nil {
		t.Fatalf("InitStorage() error = %v", err)
	}
	return cfg
}

func openTestApp(t *testing.T, cfg *config.Config, operation string, clock wake.Clock) *WakeApp {
	t.Helper()
	a, err := newWakeApp(context.Background(), cfg, operation, Options{}, clock, testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("newWakeApp() error = %v", err)
	}
	return a
}

func TestNewWakeApp_RequiresMigrations(t *testing.T) {
	cfg := config.NewConfig("dev-1", t.TempDir())
	cfg.Platform = config.PlatformConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}

	if _, err := NewWakeApp(context.Background(), cfg, "Sync", Options{}); err == nil {
		t.Fatal("NewWakeApp() on an uninitialized database expected error")
	}
}

func TestWakeApp_CreateAndEdit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := openTestApp(t, cfg, "CreateAlarm", testutil.FixedClock())
	defer a.Close()

	alarm, err := a.CreateAlarm(ctx, AlarmInput{Label: "gym", Time: "10:45", Period: "am"})
	if err != nil {
		t.Fatalf("CreateAlarm() error = %v", err)
	}
	if alarm.Schedule != wake.ScheduleOnce || alarm.Difficulty != wake.DifficultyMedium || !alarm.Enabled {
		t.Errorf("CreateAlarm() = %+v, want enabled Once alarm at medium difficulty", alarm)
	}

	entries, err := a.OSEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := testutil.Day(15, 10, 45)
	if len(entries) != 1 || !entries[0].FireAt.Equal(want) {
		t.Fatalf("OS entries = %+v, want one at %v", entries, want)
	}

	newTime, hard := "11:00", "HARD"
	edited, err := a.EditAlarm(ctx, alarm.ID, AlarmEdit{Time: &newTime, Difficulty: &hard})
	if err != nil {
		t.Fatalf("EditAlarm() error = %v", err)
	}
	if edited.Time != "11:00" || edited.Difficulty != wake.DifficultyHard || edited.Label != "gym" {
		t.Errorf("EditAlarm() = %+v", edited)
	}
	entries, _ = a.OSEntries(ctx)
	if len(entries) != 1 || entries[0].FireAt.Hour() != 11 {
		t.Errorf("OS entries after edit = %+v, want one at 11:00", entries)
	}

	if _, err := a.SetEnabled(ctx, alarm.ID, false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if entries, _ = a.OSEntries(ctx); len(entries) != 0 {
		t.Errorf("OS entries after disable = %d, want 0", len(entries))
	}

	if err := a.DeleteAlarm(ctx, alarm.ID); err != nil {
		t.Fatalf("DeleteAlarm() error = %v", err)
	}
	alarms, err := a.ListAlarms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(alarms) != 0 {
		t.Errorf("ListAlarms() = %d alarms, want 0", len(alarms))
	}
}

func TestWakeApp_InvalidInput(t *testing.T) {
	ctx := context.Background()
	a := openTestApp(t, testConfig(t), "CreateAlarm", testutil.FixedClock())
	defer a.Close()

	tests := []struct {
		name string
		in   AlarmInput
	}{
		{name: "bad period", in: AlarmInput{Time: "07:00", Period: "noon"}},
		{name: "bad difficulty", in: AlarmInput{Time: "07:00", Period: "AM", Difficulty: "brutal"}},
		{name: "bad time", in: AlarmInput{Time: "13:00", Period: "AM"}},
		{name: "bad schedule", in: AlarmInput{Time: "07:00", Period: "AM", Schedule: "Someday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.CreateAlarm(ctx, tt.in); err == nil {
				t.Error("CreateAlarm() expected error")
			}
		})
	}
	if a.op.Status != "error" {
		t.Errorf("operation status = %q, want error", a.op.Status)
	}
}

func TestWakeApp_OperationsAreRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	clock := testutil.FixedClock()

	a := openTestApp(t, cfg, "CreateAlarm", clock)
	if _, err := a.CreateAlarm(ctx, AlarmInput{Time: "07:00", Period: "AM"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b := openTestApp(t, cfg, "CreateAlarm", clock)
	b.CreateAlarm(ctx, AlarmInput{Time: "07:00", Period: "XM"})
	b.Close()

	// Read-only commands are not recorded.
	c := openTestApp(t, cfg, "ListAlarms", clock)
	if _, err := c.ListAlarms(ctx); err != nil {
		t.Fatal(err)
	}
	c.Close()

	d := openTestApp(t, cfg, "Log", clock)
	defer d.Close()
	ops, err := d.Operations(ctx, 10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Operations() = %d, want 2", len(ops))
	}
	statuses := map[string]int{}
	for _, op := range ops {
		if op.Operation != "CreateAlarm" {
			t.Errorf("operation = %q, want CreateAlarm", op.Operation)
		}
		if !op.FinishedAt.Valid {
			t.Errorf("operation %d not finished", op.ID)
		}
		statuses[op.Status]++
	}
	if statuses["success"] != 1 || statuses["error"] != 1 {
		t.Errorf("statuses = %v, want one success and one error", statuses)
	}

	if _, err := os.Stat(filepath.Join(cfg.LogDir, "wake.log")); err != nil {
		t.Errorf("log file not written: %v", err)
	}
}

// deliverAndPress creates an alarm at 10:45, lets it fire and taps its
// notification while the app is closed.
func deliverAndPress(t *testing.T, a *WakeApp, clock *testutil.StubClock) *wake.Alarm {
	t.Helper()
	ctx := context.Background()
	alarm, err := a.CreateAlarm(ctx, AlarmInput{Time: "10:45", Period: "AM", Challenge: "Math", ChallengeType: "math"})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(15 * time.Minute)
	shown, err := a.OSFire(ctx)
	if err != nil {
		t.Fatalf("OSFire() error = %v", err)
	}
	if len(shown) != 1 {
		t.Fatalf("OSFire() delivered %d, want 1", len(shown))
	}
	if _, err := a.OSPress(ctx, shown[0].Handle); err != nil {
		t.Fatalf("OSPress() error = %v", err)
	}
	return alarm
}

func answers(list ...string) AnswerFunc {
	return func(prompt string, attempt int) (string, error) {
		if attempt > len(list) {
			return "", context.Canceled
		}
		return list[attempt-1], nil
	}
}

func TestWakeApp_OpenAndDismiss(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	a := openTestApp(t, testConfig(t), "Ring", clock)
	defer a.Close()
	a.challenges = func(string, wake.Difficulty) wake.Challenge { return testutil.FixedChallenge{Answer: "42"} }

	alarm := deliverAndPress(t, a, clock)

	routed, err := a.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if routed == nil || routed.AlarmID != alarm.ID || routed.Type != "math" {
		t.Fatalf("Open() routed %+v, want alarm %s", routed, alarm.ID)
	}

	ringer := &testutil.RecordingRinger{}
	completion, err := a.Dismiss(ctx, *routed, ringer, answers("41", "42"))
	if err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if completion.CognitiveScore != 80 {
		t.Errorf("CognitiveScore = %d, want 80", completion.CognitiveScore)
	}
	if ringer.Ringing() {
		t.Error("ringer still ringing after dismiss")
	}

	got, err := a.service.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("one-time alarm still enabled after dismiss")
	}
	entries, _ := a.OSEntries(ctx)
	if len(entries) != 0 {
		t.Errorf("OS entries after dismiss = %+v, want none", entries)
	}

	hist, err := a.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Summary.Count != 1 {
		t.Errorf("history count = %d, want 1", hist.Summary.Count)
	}
}

func TestWakeApp_DismissCancelled(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	a := openTestApp(t, testConfig(t), "Ring", clock)
	defer a.Close()
	a.challenges = func(string, wake.Difficulty) wake.Challenge { return testutil.FixedChallenge{Answer: "42"} }

	alarm := deliverAndPress(t, a, clock)
	link, err := wake.BuildTriggerLink(alarm.Payload())
	if err != nil {
		t.Fatal(err)
	}

	ringer := &testutil.RecordingRinger{}
	_, err = a.Ring(ctx, link, ringer, answers("1"))
	if !errors.Is(err, wake.ErrUserCancelled) {
		t.Fatalf("Ring() error = %v, want ErrUserCancelled", err)
	}
	if ringer.Ringing() {
		t.Error("ringer left running after cancel")
	}

	entries, _ := a.OSEntries(ctx)
	if len(entries) == 0 || !entries[0].Delivered {
		t.Errorf("OS entries = %+v, want the delivered notification kept", entries)
	}

	if _, err := a.Ring(ctx, "/alarm/trigger?time=07:00", ringer, answers("42")); !errors.Is(err, wake.ErrMalformedPayload) {
		t.Errorf("Ring(malformed) error = %v, want ErrMalformedPayload", err)
	}
}

func TestWakeApp_DismissBadDefaultDifficulty(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Alarms.DefaultDifficulty = "brutal"
	a := openTestApp(t, cfg, "Ring", testutil.FixedClock())
	defer a.Close()

	ringer := &testutil.RecordingRinger{}
	_, err := a.Ring(ctx, "/alarm/trigger?alarmId=unknown&time=07:00&period=AM", ringer, answers("42"))
	if err == nil || !strings.Contains(err.Error(), "brutal") {
		t.Fatalf("Ring() error = %v, want the bad default difficulty reported", err)
	}
	if ringer.Ringing() {
		t.Error("ringer started despite the configuration error")
	}
}

func TestWakeApp_SnoozeAction(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	a := openTestApp(t, testConfig(t), "OSAction", clock)
	defer a.Close()

	alarm, err := a.CreateAlarm(ctx, AlarmInput{Time: "10:45", Period: "AM"})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(15 * time.Minute)
	shown, err := a.OSFire(ctx)
	if err != nil || len(shown) != 1 {
		t.Fatalf("OSFire() = %v, %v", shown, err)
	}

	if _, err := a.OSAction(ctx, shown[0].Handle, "Snooze"); err != nil {
		t.Fatalf("OSAction(snooze) error = %v", err)
	}

	entries, _ := a.OSEntries(ctx)
	var snooze *wake.ScheduledAlarm
	for i := range entries {
		if entries[i].Kind == wake.KindSnooze {
			snooze = &entries[i]
		}
	}
	want := testutil.Day(15, 10, 50)
	if snooze == nil || !snooze.FireAt.Equal(want) || snooze.Payload.AlarmID != alarm.ID {
		t.Errorf("snooze entry = %+v, want one at %v", snooze, want)
	}

	if _, err := a.OSAction(ctx, shown[0].Handle, "explode"); err == nil {
		t.Error("OSAction(unknown) expected error")
	}
}

func TestWakeApp_Snooze(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Alarms.SnoozeMinutes = 9
	a := openTestApp(t, cfg, "Snooze", testutil.FixedClock())
	defer a.Close()

	alarm, err := a.CreateAlarm(ctx, AlarmInput{Time: "07:00", Period: "AM", Schedule: wake.ScheduleDaily})
	if err != nil {
		t.Fatal(err)
	}
	at, err := a.Snooze(ctx, alarm.ID)
	if err != nil {
		t.Fatalf("Snooze() error = %v", err)
	}
	if want := testutil.Day(15, 10, 39); !at.Equal(want) {
		t.Errorf("Snooze() = %v, want %v", at, want)
	}
}

func TestWakeApp_SyncAndStatus(t *testing.T) {
	ctx := context.Background()
	a := openTestApp(t, testConfig(t), "Sync", testutil.FixedClock())
	defer a.Close()

	if _, err := a.CreateAlarm(ctx, AlarmInput{Time: "06:30", Period: "AM", Schedule: "Weekdays"}); err != nil {
		t.Fatal(err)
	}
	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if report.Err() != nil {
		t.Errorf("Sync() report error = %v", report.Err())
	}

	status, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status.Alarms) != 1 || status.Alarms[0].State != wake.StateInSync {
		t.Errorf("Status() = %+v, want one in-sync alarm", status.Alarms)
	}
}

func TestWakeApp_Settings(t *testing.T) {
	ctx := context.Background()
	a := openTestApp(t, testConfig(t), "Permissions", testutil.FixedClock())
	defer a.Close()

	if !a.Permissions(ctx).AllGranted() {
		t.Error("memory platform should report all permissions granted")
	}
	if !a.RequestPermissions(ctx) {
		t.Error("RequestPermissions() = false, want true")
	}
	if err := a.OpenSettings(ctx, "Exact-Alarm"); err != nil {
		t.Errorf("OpenSettings() error = %v", err)
	}
	if err := a.OpenSettings(ctx, "wifi"); err == nil {
		t.Error("OpenSettings(wifi) expected error")
	}
	if err := a.OSGrant("battery", "maybe"); err == nil {
		t.Error("OSGrant(maybe) expected error")
	}
	if err := a.OSGrant("bluetooth", "granted"); err == nil {
		t.Error("OSGrant(bluetooth) expected error")
	}
}

func TestWakeApp_BackupRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	clock := testutil.FixedClock()
	a := openTestApp(t, cfg, "Backup", clock)
	defer a.Close()

	if err := a.CheckVault(ctx); err != nil {
		t.Fatalf("CheckVault() error = %v", err)
	}
	if a.NeedsPassphrase() {
		t.Error("NeedsPassphrase() = true for test encryptor")
	}
	if _, err := a.CreateAlarm(ctx, AlarmInput{Time: "07:00", Period: "AM"}); err != nil {
		t.Fatal(err)
	}

	res, err := a.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if res.Version != clock.Now().UnixMilli() || res.DeviceID != "dev-1" {
		t.Errorf("Backup() = %+v", res)
	}

	out := filepath.Join(t.TempDir(), "restored.db")
	got, err := a.Restore(ctx, "", out)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got != out {
		t.Errorf("Restore() path = %q, want %q", got, out)
	}
	if _, err := a.Restore(ctx, "", out); err == nil {
		t.Error("Restore() over an existing file expected error")
	}
}

func TestWakeApp_NoVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vaults = nil
	a := openTestApp(t, cfg, "Backup", testutil.FixedClock())
	defer a.Close()

	if err := a.CheckVault(context.Background()); !errors.Is(err, wake.ErrNoVault) {
		t.Errorf("CheckVault() error = %v, want ErrNoVault", err)
	}
	if _, err := a.Backup(context.Background()); !errors.Is(err, wake.ErrNoVault) {
		t.Errorf("Backup() error = %v, want ErrNoVault", err)
	}
}

func TestParseDifficulty(t *testing.T) {
	a := &WakeApp{cfg: &config.Config{}}
	tests := []struct {
		in      string
		want    wake.Difficulty
		wantErr bool
	}{
		{in: "", want: wake.DifficultyMedium},
		{in: "easy", want: wake.DifficultyEasy},
		{in: "Hard", want: wake.DifficultyHard},
		{in: "extreme", wantErr: true},
	}
	for _, tt := range tests {
		got, err := a.parseDifficulty(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDifficulty(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDifficulty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
