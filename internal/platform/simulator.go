// Package platform provides AlarmPlatform variants backed by a simulated
// native notification subsystem. Each variant applies the rules of its OS
// (permission axes, scheduling limits, channels) on top of a shared
// simulator whose state lives in memory or in a JSON file.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wake-go/internal/wake"
)

var (
	ErrUnknownHandle  = errors.New("no such notification")
	ErrNotDelivered   = errors.New("notification has not been delivered")
	ErrAppNotRunning  = errors.New("app is not running")
	ErrUnknownAxis    = errors.New("unknown permission axis")
	ErrUnknownChannel = errors.New("notification channel not created")
)

// rules captures what differs between operating systems.
type rules interface {
	name() string
	channels() []string
	defaults() permissions
	// status projects stored grants onto the four axes. Axes the OS does
	// not have are reported granted.
	status(p permissions) wake.PermissionStatus
	// prompt returns the notification state after showing the OS prompt
	// with the user answering answer.
	prompt(current, answer wake.PermissionState) wake.PermissionState
	// admit is the OS-level gate for a new entry.
	admit(st *osState, req wake.ScheduleRequest) error
}

// Faults makes platform calls fail. Zero fields disable a fault.
type Faults struct {
	Schedule    error
	ScheduleFor map[string]error // keyed by alarm ID
	Cancel      error
	List        error
	Permissions error
	Launch      error
}

type listener struct {
	id int
	fn func(wake.NotificationEvent)
}

// Simulator implements wake.AlarmPlatform plus controls for driving the
// simulated OS: firing due entries, pressing notifications and changing
// permissions.
type Simulator struct {
	rules  rules
	store  stateStore
	answer wake.PermissionState

	mu        sync.Mutex
	faults    Faults
	listeners []listener
	nextID    int
}

var _ wake.AlarmPlatform = (*Simulator)(nil)

func newSimulator(r rules, store stateStore) *Simulator {
	return &Simulator{rules: r, store: store, answer: wake.PermissionGranted}
}

// SetFaults replaces the injected failures.
func (s *Simulator) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// SetPromptAnswer sets how the simulated user answers the notification
// permission prompt.
func (s *Simulator) SetPromptAnswer(state wake.PermissionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = state
}

func (s *Simulator) Name() string { return s.rules.name() }

// load must be called with mu held.
func (s *Simulator) load() (*osState, error) {
	st, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &osState{Permissions: s.rules.defaults()}
	}
	if st.Permissions == nil {
		st.Permissions = s.rules.defaults()
	}
	return st, nil
}

// update runs fn over the loaded state and saves it when fn succeeds.
func (s *Simulator) update(fn func(st *osState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	st.sortEntries()
	return s.store.Save(st)
}

func (s *Simulator) view(fn func(st *osState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	fn(st)
	return nil
}

func (s *Simulator) EnsureChannels(ctx context.Context) error {
	return s.update(func(st *osState) error {
		for _, c := range s.rules.channels() {
			if !contains(st.Channels, c) {
				st.Channels = append(st.Channels, c)
			}
		}
		return nil
	})
}

// ScheduleAt replaces any entry with the same handle.
func (s *Simulator) ScheduleAt(ctx context.Context, req wake.ScheduleRequest) (string, error) {
	if req.Handle == "" {
		return "", fmt.Errorf("schedule request without handle")
	}
	err := s.update(func(st *osState) error {
		if err := s.faults.Schedule; err != nil {
			return err
		}
		if err := s.faults.ScheduleFor[req.Payload.AlarmID]; err != nil {
			return err
		}
		for _, c := range s.rules.channels() {
			if !contains(st.Channels, c) {
				return fmt.Errorf("%w: %s", ErrUnknownChannel, c)
			}
		}
		entry := osEntry{
			Handle:   req.Handle,
			Kind:     req.Kind,
			FireAt:   req.FireAt,
			Payload:  req.Payload,
			Revision: req.Revision,
		}
		if i := st.find(req.Handle); i >= 0 {
			st.Entries[i] = entry
			return nil
		}
		if err := s.rules.admit(st, req); err != nil {
			return err
		}
		st.Entries = append(st.Entries, entry)
		return nil
	})
	if err != nil {
		return "", err
	}
	return req.Handle, nil
}

// Cancel removes a pending or delivered entry. Unknown handles are a no-op.
func (s *Simulator) Cancel(ctx context.Context, handle string) error {
	return s.update(func(st *osState) error {
		if err := s.faults.Cancel; err != nil {
			return err
		}
		if i := st.find(handle); i >= 0 {
			st.Entries = append(st.Entries[:i], st.Entries[i+1:]...)
		}
		return nil
	})
}

func (s *Simulator) ListScheduled(ctx context.Context) ([]wake.ScheduledAlarm, error) {
	s.mu.Lock()
	fault := s.faults.List
	s.mu.Unlock()
	if fault != nil {
		return nil, fault
	}

	var out []wake.ScheduledAlarm
	err := s.view(func(st *osState) {
		st.sortEntries()
		for _, e := range st.Entries {
			out = append(out, e.scheduled())
		}
	})
	return out, err
}

// InitialLaunchNotification consumes the notification that launched the app.
func (s *Simulator) InitialLaunchNotification(ctx context.Context) (*wake.Payload, error) {
	var launch *wake.Payload
	err := s.update(func(st *osState) error {
		if err := s.faults.Launch; err != nil {
			return err
		}
		launch = st.Launch
		st.Launch = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return launch, nil
}

// Listen registers fn for notification callbacks. While at least one
// listener is registered the app counts as running.
func (s *Simulator) Listen(fn func(wake.NotificationEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Simulator) QueryPermissions(ctx context.Context) (wake.PermissionStatus, error) {
	s.mu.Lock()
	fault := s.faults.Permissions
	s.mu.Unlock()
	if fault != nil {
		return wake.PermissionStatus{}, fault
	}

	var status wake.PermissionStatus
	err := s.view(func(st *osState) {
		status = s.rules.status(st.Permissions)
	})
	return status, err
}

func (s *Simulator) RequestNotificationPermission(ctx context.Context) (wake.PermissionState, error) {
	var result wake.PermissionState
	err := s.update(func(st *osState) error {
		if err := s.faults.Permissions; err != nil {
			return err
		}
		current := s.rules.status(st.Permissions).Notifications
		result = s.rules.prompt(current, s.answer)
		st.Permissions[wake.SettingsNotifications] = result
		return nil
	})
	return result, err
}

// OpenSettings records the visit. Nothing changes until Grant is called,
// the way a real settings screen needs the user to act.
func (s *Simulator) OpenSettings(ctx context.Context, page wake.SettingsPage) error {
	if _, ok := axisNames[page]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAxis, page)
	}
	return s.update(func(st *osState) error {
		st.Opened = append(st.Opened, page)
		return nil
	})
}

// OpenedSettings lists the settings pages visited, oldest first.
func (s *Simulator) OpenedSettings() ([]wake.SettingsPage, error) {
	var pages []wake.SettingsPage
	err := s.view(func(st *osState) {
		pages = append(pages, st.Opened...)
	})
	return pages, err
}

var axisNames = map[wake.SettingsPage]bool{
	wake.SettingsNotifications: true,
	wake.SettingsExactAlarm:    true,
	wake.SettingsFullScreen:    true,
	wake.SettingsBattery:       true,
}

// Grant sets one permission axis, as the user would in the settings app.
func (s *Simulator) Grant(axis wake.SettingsPage, state wake.PermissionState) error {
	if !axisNames[axis] {
		return fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	return s.update(func(st *osState) error {
		st.Permissions[axis] = state
		return nil
	})
}

// Fire delivers every pending entry due at now. Entries that cannot be
// shown because notifications are not granted are dropped, which is how an
// alarm silently fails to ring. Running listeners receive a delivered event
// for each shown entry.
func (s *Simulator) Fire(ctx context.Context, now time.Time) ([]wake.ScheduledAlarm, error) {
	var shown []wake.ScheduledAlarm
	err := s.update(func(st *osState) error {
		canShow := s.rules.status(st.Permissions).CanNotify()
		kept := st.Entries[:0]
		for _, e := range st.Entries {
			if e.Delivered || e.FireAt.After(now) {
				kept = append(kept, e)
				continue
			}
			if !canShow {
				continue
			}
			e.Delivered = true
			kept = append(kept, e)
			shown = append(shown, e.scheduled())
		}
		st.Entries = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range shown {
		s.emit(wake.NotificationEvent{Type: wake.NotificationDelivered, Handle: e.Handle, Payload: e.Payload})
	}
	return shown, nil
}

// Press taps a delivered notification. With the app running the tap is
// delivered as a callback; otherwise it launches the app and is kept as the
// launch notification. Alarm notifications are ongoing, so the entry stays
// in the tray until the app clears it.
func (s *Simulator) Press(ctx context.Context, handle string) (*wake.Payload, error) {
	return s.act(handle, wake.NotificationPressed)
}

// Action presses one of the notification's buttons. Dismiss opens the app
// like a tap; snooze is handled in the background and needs a running app.
func (s *Simulator) Action(ctx context.Context, handle string, action wake.NotificationEventType) (*wake.Payload, error) {
	switch action {
	case wake.NotificationSnooze, wake.NotificationDismiss:
	default:
		return nil, fmt.Errorf("unknown notification action %q", action)
	}
	return s.act(handle, action)
}

func (s *Simulator) act(handle string, typ wake.NotificationEventType) (*wake.Payload, error) {
	s.mu.Lock()
	running := len(s.listeners) > 0
	s.mu.Unlock()

	var payload wake.Payload
	err := s.update(func(st *osState) error {
		i := st.find(handle)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
		}
		if !st.Entries[i].Delivered {
			return fmt.Errorf("%w: %s", ErrNotDelivered, handle)
		}
		payload = st.Entries[i].Payload
		if running {
			return nil
		}
		if typ == wake.NotificationSnooze {
			return ErrAppNotRunning
		}
		p := payload
		st.Launch = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if running {
		s.emit(wake.NotificationEvent{Type: typ, Handle: handle, Payload: payload})
	}
	return &payload, nil
}

// emit calls listeners outside the lock, in registration order.
func (s *Simulator) emit(ev wake.NotificationEvent) {
	s.mu.Lock()
	ls := append([]listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
