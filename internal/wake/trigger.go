package wake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TriggerState is the handler's position in the notification-to-screen flow.
type TriggerState string

const (
	TriggerIdle      TriggerState = "idle"
	TriggerDelivered TriggerState = "delivered"
	TriggerOpened    TriggerState = "opened"
	TriggerRouted    TriggerState = "routed"
)

// EventKind identifies what happened to an alarm.
type EventKind string

const (
	EventTriggered EventKind = "triggered"
	EventRouted    EventKind = "routed"
	EventSnoozed   EventKind = "snoozed"
	EventDismissed EventKind = "dismissed"
)

// Event is published to every subscriber of a TriggerHandler.
// Alarm is set when the lookup knows the alarm.
type Event struct {
	Kind    EventKind
	AlarmID string
	Payload Payload
	Link    string
	Alarm   *Alarm
	At      time.Time
}

// AlarmLookup resolves an alarm ID to its record; nil when unknown.
type AlarmLookup interface {
	GetAlarm(ctx context.Context, id string) (*Alarm, error)
}

// ErrNavigatorNotReady is returned by a Navigator whose screen stack is not
// mounted yet. Routing retries it with backoff.
var ErrNavigatorNotReady = errors.New("navigator not ready")

// Navigator dispatches an in-app deep link.
type Navigator interface {
	Navigate(link string) error
}

// DefaultRouteRetry defers cold-start routing until the navigator mounts.
var DefaultRouteRetry = RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

// routeDedupeWindow drops a repeat open of the alarm that was just routed,
// such as a tap delivered both as a launch notification and a callback.
const routeDedupeWindow = 2 * time.Second

type subscriber struct {
	id int
	fn func(Event)
}

// TriggerHandler turns OS notification callbacks into deep-link navigation
// and alarm events. It knows nothing about persistence; subscribers decide
// what an event means.
type TriggerHandler struct {
	platform   AlarmPlatform
	navigator  Navigator
	logger     Logger
	clock      Clock
	routeRetry RetryPolicy

	mu          sync.Mutex
	state       TriggerState
	current     *Payload
	routedAt    time.Time
	lookup      AlarmLookup
	onSnooze    func(context.Context, Payload) error
	subscribers []subscriber
	nextSubID   int
	unlisten    func()
}

// NewTriggerHandler creates a handler in the Idle state.
func NewTriggerHandler(platform AlarmPlatform, navigator Navigator, logger Logger, clock Clock, routeRetry RetryPolicy) *TriggerHandler {
	return &TriggerHandler{
		platform:   platform,
		navigator:  navigator,
		logger:     logger,
		clock:      clock,
		routeRetry: routeRetry,
		state:      TriggerIdle,
	}
}

// SetLookup installs the alarm lookup used to enrich events.
func (h *TriggerHandler) SetLookup(l AlarmLookup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookup = l
}

// OnSnoozeAction installs the handler for the notification's snooze button.
// It is expected to call Complete itself. Without one, the action only ends
// the current trigger.
func (h *TriggerHandler) OnSnoozeAction(fn func(context.Context, Payload) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSnooze = fn
}

// Subscribe registers fn for every event. Subscribers run synchronously in
// registration order.
func (h *TriggerHandler) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSubID++
	id := h.nextSubID
	h.subscribers = append(h.subscribers, subscriber{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subscribers {
			if s.id == id {
				h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
				return
			}
		}
	}
}

// State returns the current state.
func (h *TriggerHandler) State() TriggerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Current returns the alarm last delivered or routed until it is completed,
// or nil.
func (h *TriggerHandler) Current() *Payload {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	p := *h.current
	return &p
}

// Start registers for platform callbacks and performs the cold-start check:
// if the process was launched from an alarm notification it is routed
// immediately. A failing launch probe is logged, never returned.
func (h *TriggerHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.unlisten == nil {
		h.unlisten = h.platform.Listen(func(ev NotificationEvent) {
			if err := h.HandleEvent(ctx, ev); err != nil {
				h.logger.Warn("notification event not handled", "type", string(ev.Type), "error", err)
			}
		})
	}
	h.mu.Unlock()

	payload, err := h.platform.InitialLaunchNotification(ctx)
	if err != nil {
		h.logger.Warn("reading launch notification failed", "error", err)
		return nil
	}
	if payload == nil {
		return nil
	}
	h.logger.Info("launched from alarm notification", "alarm", payload.AlarmID)
	if err := h.open(ctx, *payload); err != nil {
		h.logger.Error("cold-start routing failed", "alarm", payload.AlarmID, "error", err)
	}
	return nil
}

// HandleEvent processes one OS callback.
//
// The notification's dismiss action opens the challenge like a tap does;
// only a solved challenge may silence an alarm.
func (h *TriggerHandler) HandleEvent(ctx context.Context, ev NotificationEvent) error {
	switch ev.Type {
	case NotificationDelivered:
		return h.deliver(ctx, ev.Payload)
	case NotificationPressed, NotificationDismiss:
		return h.open(ctx, ev.Payload)
	case NotificationSnooze:
		if ev.Payload.AlarmID == "" {
			h.logger.Warn("dropping malformed snooze action", "handle", ev.Handle)
			return ErrMalformedPayload
		}
		h.mu.Lock()
		onSnooze := h.onSnooze
		h.mu.Unlock()
		if onSnooze != nil {
			return onSnooze(ctx, ev.Payload)
		}
		h.Complete(ctx, ev.Payload, EventSnoozed)
		return nil
	default:
		return fmt.Errorf("unknown notification event type %q", ev.Type)
	}
}

// Complete ends handling of an alarm after it was snoozed or dismissed and
// publishes the matching event.
func (h *TriggerHandler) Complete(ctx context.Context, p Payload, kind EventKind) {
	h.mu.Lock()
	if h.current != nil && h.current.AlarmID == p.AlarmID {
		h.state = TriggerIdle
		h.current = nil
		h.routedAt = time.Time{}
	}
	h.mu.Unlock()
	h.publish(ctx, kind, p, "")
}

// Cleanup unregisters the platform listener and drops all subscribers.
func (h *TriggerHandler) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unlisten != nil {
		h.unlisten()
		h.unlisten = nil
	}
	h.subscribers = nil
	h.state = TriggerIdle
	h.current = nil
	h.routedAt = time.Time{}
}

func (h *TriggerHandler) deliver(ctx context.Context, p Payload) error {
	if p.AlarmID == "" {
		h.logger.Warn("dropping malformed delivered notification")
		return ErrMalformedPayload
	}
	h.mu.Lock()
	h.state = TriggerDelivered
	h.current = &p
	h.routedAt = time.Time{}
	h.mu.Unlock()

	h.publish(ctx, EventTriggered, p, "")
	return nil
}

func (h *TriggerHandler) open(ctx context.Context, p Payload) error {
	if p.AlarmID == "" {
		h.logger.Warn("dropping malformed opened notification")
		return ErrMalformedPayload
	}
	link, err := BuildTriggerLink(p)
	if err != nil {
		return err
	}

	h.mu.Lock()
	sameAlarm := h.current != nil && h.current.AlarmID == p.AlarmID
	if sameAlarm && !h.routedAt.IsZero() && h.clock.Now().Sub(h.routedAt) < routeDedupeWindow {
		h.mu.Unlock()
		h.logger.Debug("alarm already routed", "alarm", p.AlarmID)
		return nil
	}
	// Triggered was already published for a delivered or reopened alarm.
	announced := sameAlarm
	h.state = TriggerOpened
	h.current = &p
	h.routedAt = time.Time{}
	h.mu.Unlock()

	if !announced {
		h.publish(ctx, EventTriggered, p, "")
	}

	err = Retry(ctx, h.routeRetry, func() error {
		err := h.navigator.Navigate(link)
		if err != nil && !errors.Is(err, ErrNavigatorNotReady) {
			return Permanent(err)
		}
		return err
	})
	if err != nil {
		h.mu.Lock()
		h.state = TriggerIdle
		h.current = nil
		h.mu.Unlock()
		return fmt.Errorf("routing %s: %w", link, err)
	}

	h.mu.Lock()
	h.state = TriggerRouted
	h.routedAt = h.clock.Now()
	h.mu.Unlock()

	h.logger.Info("alarm routed", "alarm", p.AlarmID, "link", link)
	h.publish(ctx, EventRouted, p, link)

	// The alarm stays current so a repeat tap can be told apart, but the
	// handler is ready for the next open.
	h.mu.Lock()
	if h.state == TriggerRouted {
		h.state = TriggerIdle
	}
	h.mu.Unlock()
	return nil
}

func (h *TriggerHandler) publish(ctx context.Context, kind EventKind, p Payload, link string) {
	h.mu.Lock()
	subs := append([]subscriber(nil), h.subscribers...)
	lookup := h.lookup
	h.mu.Unlock()

	ev := Event{Kind: kind, AlarmID: p.AlarmID, Payload: p, Link: link, At: h.clock.Now()}
	if lookup != nil {
		alarm, err := lookup.GetAlarm(ctx, p.AlarmID)
		if err != nil {
			h.logger.Warn("alarm lookup failed", "alarm", p.AlarmID, "error", err)
		}
		ev.Alarm = alarm
	}
	for _, s := range subs {
		s.fn(ev)
	}
}
