package testutil

import (
	"sync"

	"wake-go/internal/wake"
)

// RecordingNavigator records every link it is asked to open. While
// NotReady is above zero, each call consumes one and fails with
// wake.ErrNavigatorNotReady, like a screen stack that has not mounted yet.
type RecordingNavigator struct {
	mu       sync.Mutex
	links    []string
	notReady int
	err      error
}

func NewRecordingNavigator() *RecordingNavigator {
	return &RecordingNavigator{}
}

// FailUntilReady makes the next n calls return wake.ErrNavigatorNotReady.
func (n *RecordingNavigator) FailUntilReady(calls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notReady = calls
}

// FailWith makes every call fail with err. A nil err clears it.
func (n *RecordingNavigator) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *RecordingNavigator) Navigate(link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if n.notReady > 0 {
		n.notReady--
		return wake.ErrNavigatorNotReady
	}
	n.links = append(n.links, link)
	return nil
}

// Links returns the links navigated to, oldest first.
func (n *RecordingNavigator) Links() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.links...)
}

// RecordingRinger counts starts and stops.
type RecordingRinger struct {
	mu      sync.Mutex
	Starts  int
	Stops   int
	ringing bool
}

func (r *RecordingRinger) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Starts++
	r.ringing = true
	return nil
}

func (r *RecordingRinger) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stops++
	r.ringing = false
	return nil
}

// Ringing reports whether Start was called more recently than Stop.
func (r *RecordingRinger) Ringing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ringing
}

// FixedChallenge accepts only Answer.
type FixedChallenge struct {
	Answer string
}

func (c FixedChallenge) Prompt() string { return "say " + c.Answer }

func (c FixedChallenge) Check(answer string) bool { return answer == c.Answer }

var (
	_ wake.Navigator = (*RecordingNavigator)(nil)
	_ wake.Ringer    = (*RecordingRinger)(nil)
	_ wake.Challenge = FixedChallenge{}
)
