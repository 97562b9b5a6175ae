package platform

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wake-go/internal/wake"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func request(alarmID string, at time.Time) wake.ScheduleRequest {
	return wake.ScheduleRequest{
		Handle:   wake.EntryHandle(wake.KindAlarm, alarmID, at),
		Kind:     wake.KindAlarm,
		FireAt:   at,
		Payload:  wake.Payload{AlarmID: alarmID, Time: "07:00", Period: wake.AM},
		Revision: "rev-" + alarmID,
	}
}

func TestSimulator_ScheduleReplacesSameHandle(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()

	req := request("a1", t0.Add(time.Hour))
	for i := 0; i < 3; i++ {
		if _, err := p.ScheduleAt(ctx, req); err != nil {
			t.Fatalf("ScheduleAt() error = %v", err)
		}
	}
	other := request("a2", t0.Add(2*time.Hour))
	if _, err := p.ScheduleAt(ctx, other); err != nil {
		t.Fatalf("ScheduleAt() error = %v", err)
	}

	entries, err := p.ListScheduled(ctx)
	if err != nil {
		t.Fatalf("ListScheduled() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListScheduled() returned %d entries, want 2", len(entries))
	}
	if entries[0].Payload.AlarmID != "a1" || entries[1].Payload.AlarmID != "a2" {
		t.Errorf("entries not ordered by fire time: %+v", entries)
	}
}

func TestSimulator_CancelUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()

	if err := p.Cancel(ctx, "alarm:nope:1"); err != nil {
		t.Errorf("Cancel(unknown) error = %v", err)
	}

	req := request("a1", t0)
	if _, err := p.ScheduleAt(ctx, req); err != nil {
		t.Fatal(err)
	}
	if err := p.Cancel(ctx, req.Handle); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	entries, _ := p.ListScheduled(ctx)
	if len(entries) != 0 {
		t.Errorf("ListScheduled() = %d entries after cancel, want 0", len(entries))
	}
}

func TestSimulator_Fire(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()

	due := request("due", t0)
	later := request("later", t0.Add(time.Hour))
	for _, r := range []wake.ScheduleRequest{due, later} {
		if _, err := p.ScheduleAt(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	var events []wake.NotificationEvent
	unsubscribe := p.Listen(func(ev wake.NotificationEvent) { events = append(events, ev) })
	defer unsubscribe()

	shown, err := p.Fire(ctx, t0)
	if err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if len(shown) != 1 || shown[0].Handle != due.Handle {
		t.Fatalf("Fire() = %+v, want only %s", shown, due.Handle)
	}
	if len(events) != 1 || events[0].Type != wake.NotificationDelivered {
		t.Errorf("events = %+v, want one delivered event", events)
	}

	entries, _ := p.ListScheduled(ctx)
	for _, e := range entries {
		if e.Handle == due.Handle && !e.Delivered {
			t.Error("fired entry not marked delivered")
		}
		if e.Handle == later.Handle && e.Delivered {
			t.Error("future entry marked delivered")
		}
	}

	// Already delivered entries are not delivered twice.
	shown, _ = p.Fire(ctx, t0.Add(time.Minute))
	if len(shown) != 0 {
		t.Errorf("second Fire() = %d entries, want 0", len(shown))
	}
}

func TestSimulator_FireWithoutNotificationPermission(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()
	if err := p.Grant(wake.SettingsNotifications, wake.PermissionDenied); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ScheduleAt(ctx, request("a1", t0)); err != nil {
		t.Fatal(err)
	}

	shown, err := p.Fire(ctx, t0)
	if err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if len(shown) != 0 {
		t.Errorf("Fire() showed %d notifications without permission", len(shown))
	}
	entries, _ := p.ListScheduled(ctx)
	if len(entries) != 0 {
		t.Errorf("silently failed entry still listed: %+v", entries)
	}
}

func TestSimulator_Press(t *testing.T) {
	ctx := context.Background()

	t.Run("cold start keeps launch notification", func(t *testing.T) {
		p := NewMemoryPlatform()
		req := request("a1", t0)
		if _, err := p.ScheduleAt(ctx, req); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Fire(ctx, t0); err != nil {
			t.Fatal(err)
		}

		if _, err := p.Press(ctx, req.Handle); err != nil {
			t.Fatalf("Press() error = %v", err)
		}

		launch, err := p.InitialLaunchNotification(ctx)
		if err != nil {
			t.Fatalf("InitialLaunchNotification() error = %v", err)
		}
		if launch == nil || launch.AlarmID != "a1" {
			t.Fatalf("InitialLaunchNotification() = %+v, want a1", launch)
		}
		again, _ := p.InitialLaunchNotification(ctx)
		if again != nil {
			t.Error("launch notification not consumed by first read")
		}
	})

	t.Run("running app gets callback", func(t *testing.T) {
		p := NewMemoryPlatform()
		req := request("a1", t0)
		if _, err := p.ScheduleAt(ctx, req); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Fire(ctx, t0); err != nil {
			t.Fatal(err)
		}

		var got []wake.NotificationEventType
		p.Listen(func(ev wake.NotificationEvent) { got = append(got, ev.Type) })
		if _, err := p.Press(ctx, req.Handle); err != nil {
			t.Fatalf("Press() error = %v", err)
		}
		if len(got) != 1 || got[0] != wake.NotificationPressed {
			t.Errorf("events = %v, want [pressed]", got)
		}
		if launch, _ := p.InitialLaunchNotification(ctx); launch != nil {
			t.Error("running app should not get a launch notification")
		}
	})

	t.Run("pending entry cannot be pressed", func(t *testing.T) {
		p := NewMemoryPlatform()
		req := request("a1", t0.Add(time.Hour))
		if _, err := p.ScheduleAt(ctx, req); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Press(ctx, req.Handle); !errors.Is(err, ErrNotDelivered) {
			t.Errorf("Press(pending) error = %v, want ErrNotDelivered", err)
		}
		if _, err := p.Press(ctx, "missing"); !errors.Is(err, ErrUnknownHandle) {
			t.Errorf("Press(missing) error = %v, want ErrUnknownHandle", err)
		}
	})

	t.Run("snooze needs running app", func(t *testing.T) {
		p := NewMemoryPlatform()
		req := request("a1", t0)
		if _, err := p.ScheduleAt(ctx, req); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Fire(ctx, t0); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Action(ctx, req.Handle, wake.NotificationSnooze); !errors.Is(err, ErrAppNotRunning) {
			t.Errorf("Action(snooze) error = %v, want ErrAppNotRunning", err)
		}
		if _, err := p.Action(ctx, req.Handle, wake.NotificationDelivered); err == nil {
			t.Error("Action(delivered) expected error")
		}
	})
}

func TestSimulator_Unsubscribe(t *testing.T) {
	p := NewMemoryPlatform()
	calls := 0
	unsubscribe := p.Listen(func(wake.NotificationEvent) { calls++ })
	unsubscribe()

	p.emit(wake.NotificationEvent{Type: wake.NotificationDelivered})
	if calls != 0 {
		t.Errorf("listener called %d times after unsubscribe", calls)
	}
}

func TestSimulator_Faults(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()
	boom := errors.New("boom")

	p.SetFaults(Faults{ScheduleFor: map[string]error{"bad": boom}})
	if _, err := p.ScheduleAt(ctx, request("bad", t0)); !errors.Is(err, boom) {
		t.Errorf("ScheduleAt(bad) error = %v, want boom", err)
	}
	if _, err := p.ScheduleAt(ctx, request("good", t0)); err != nil {
		t.Errorf("ScheduleAt(good) error = %v", err)
	}

	p.SetFaults(Faults{List: boom, Permissions: boom, Cancel: boom, Launch: boom})
	if _, err := p.ListScheduled(ctx); !errors.Is(err, boom) {
		t.Errorf("ListScheduled() error = %v, want boom", err)
	}
	if _, err := p.QueryPermissions(ctx); !errors.Is(err, boom) {
		t.Errorf("QueryPermissions() error = %v, want boom", err)
	}
	if err := p.Cancel(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("Cancel() error = %v, want boom", err)
	}
	if _, err := p.InitialLaunchNotification(ctx); !errors.Is(err, boom) {
		t.Errorf("InitialLaunchNotification() error = %v, want boom", err)
	}

	p.SetFaults(Faults{})
	if _, err := p.ListScheduled(ctx); err != nil {
		t.Errorf("ListScheduled() after clearing faults error = %v", err)
	}
}

func TestSimulator_Settings(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()

	if err := p.OpenSettings(ctx, wake.SettingsBattery); err != nil {
		t.Fatalf("OpenSettings() error = %v", err)
	}
	if err := p.OpenSettings(ctx, "bluetooth"); !errors.Is(err, ErrUnknownAxis) {
		t.Errorf("OpenSettings(bluetooth) error = %v, want ErrUnknownAxis", err)
	}
	opened, err := p.OpenedSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != wake.SettingsBattery {
		t.Errorf("OpenedSettings() = %v, want [battery]", opened)
	}
	if err := p.Grant("bluetooth", wake.PermissionGranted); !errors.Is(err, ErrUnknownAxis) {
		t.Errorf("Grant(bluetooth) error = %v, want ErrUnknownAxis", err)
	}
}

func TestSimulator_FileStatePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *Simulator {
		return newSimulator(iosRules{}, &fileStore{path: filepath.Join(dir, "ios.json")})
	}

	first := open()
	if err := first.EnsureChannels(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.Grant(wake.SettingsNotifications, wake.PermissionGranted); err != nil {
		t.Fatal(err)
	}
	req := request("a1", t0)
	if _, err := first.ScheduleAt(ctx, req); err != nil {
		t.Fatalf("ScheduleAt() error = %v", err)
	}
	if _, err := first.Fire(ctx, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Press(ctx, req.Handle); err != nil {
		t.Fatal(err)
	}

	second := open()
	entries, err := second.ListScheduled(ctx)
	if err != nil {
		t.Fatalf("ListScheduled() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].Delivered {
		t.Fatalf("entries after reopen = %+v, want one delivered", entries)
	}
	if !entries[0].FireAt.Equal(t0) {
		t.Errorf("FireAt = %v, want %v", entries[0].FireAt, t0)
	}
	launch, err := second.InitialLaunchNotification(ctx)
	if err != nil || launch == nil {
		t.Fatalf("InitialLaunchNotification() = %v, %v; want payload", launch, err)
	}
	status, _ := second.QueryPermissions(ctx)
	if !status.CanNotify() {
		t.Error("granted notification permission lost across reopen")
	}
}

func TestSimulator_ConcurrentScheduling(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPlatform()
	req := request("a1", t0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.ScheduleAt(ctx, req)
			_, _ = p.ListScheduled(ctx)
		}()
	}
	wg.Wait()

	entries, _ := p.ListScheduled(ctx)
	if len(entries) != 1 {
		t.Errorf("concurrent scheduling left %d entries, want 1", len(entries))
	}
}
