package wake

import (
	"errors"
	"fmt"
	"time"
)

// DismissState is a position in the dismiss-challenge gate.
type DismissState string

const (
	DismissPresented  DismissState = "presented"
	DismissAttempting DismissState = "attempting"
	DismissSolved     DismissState = "solved"
	DismissDismissed  DismissState = "dismissed"
)

var (
	ErrNotSolved     = errors.New("challenge not solved")
	ErrSessionClosed = errors.New("dismiss session already closed")
)

// Ringer produces the alarm sound/vibration.
type Ringer interface {
	Start() error
	Stop() error
}

// Challenge is a dismiss puzzle. Check must not have side effects.
type Challenge interface {
	Prompt() string
	Check(answer string) bool
}

// AttemptResult is returned for every submitted answer.
type AttemptResult struct {
	Correct  bool
	Attempts int
	State    DismissState
}

// DismissSession gates silencing an alarm behind solving its challenge.
// The ringer runs from creation until Dismiss, which is only reachable
// from Solved. Wrong answers are ordinary results, not errors.
type DismissSession struct {
	payload   Payload
	target    time.Time
	challenge Challenge
	ringer    Ringer
	clock     Clock
	idgen     IDGenerator

	state     DismissState
	attempts  int
	failed    bool
	presented time.Time
	solvedAt  time.Time
}

// NewDismissSession presents the challenge and starts the ringer.
// target is the time the alarm was scheduled to fire.
func NewDismissSession(p Payload, target time.Time, challenge Challenge, ringer Ringer, clock Clock, idgen IDGenerator) (*DismissSession, error) {
	if p.AlarmID == "" {
		return nil, ErrMalformedPayload
	}
	if err := ringer.Start(); err != nil {
		return nil, fmt.Errorf("starting ringer: %w", err)
	}
	return &DismissSession{
		payload:   p.WithDefaults(),
		target:    target,
		challenge: challenge,
		ringer:    ringer,
		clock:     clock,
		idgen:     idgen,
		state:     DismissPresented,
		presented: clock.Now(),
	}, nil
}

func (s *DismissSession) State() DismissState { return s.state }

// Attempts counts submitted answers, wrong or right.
func (s *DismissSession) Attempts() int { return s.attempts }

// LastAttemptFailed reports whether the latest answer was wrong.
func (s *DismissSession) LastAttemptFailed() bool { return s.failed }

func (s *DismissSession) Prompt() string { return s.challenge.Prompt() }

// Submit checks an answer. A wrong answer returns to Presented with the
// attempt counted; the ringer keeps going.
func (s *DismissSession) Submit(answer string) (AttemptResult, error) {
	switch s.state {
	case DismissPresented:
	case DismissSolved:
		return AttemptResult{Correct: true, Attempts: s.attempts, State: s.state}, nil
	default:
		return AttemptResult{}, ErrSessionClosed
	}

	s.state = DismissAttempting
	s.attempts++
	if !s.challenge.Check(answer) {
		s.failed = true
		s.state = DismissPresented
		return AttemptResult{Correct: false, Attempts: s.attempts, State: s.state}, nil
	}
	s.failed = false
	s.state = DismissSolved
	s.solvedAt = s.clock.Now()
	return AttemptResult{Correct: true, Attempts: s.attempts, State: s.state}, nil
}

// Dismiss silences the alarm and returns the completion record to append.
func (s *DismissSession) Dismiss() (*AlarmCompletion, error) {
	switch s.state {
	case DismissSolved:
	case DismissDismissed:
		return nil, ErrSessionClosed
	default:
		return nil, ErrNotSolved
	}
	if err := s.ringer.Stop(); err != nil {
		return nil, fmt.Errorf("stopping ringer: %w", err)
	}
	s.state = DismissDismissed

	now := s.clock.Now()
	reaction := s.solvedAt.Sub(s.presented)
	return &AlarmCompletion{
		ID:             s.idgen.New(),
		AlarmID:        s.payload.AlarmID,
		TargetTime:     s.target,
		ActualTime:     now,
		CognitiveScore: CognitiveScore(s.attempts, reaction),
		ReactionTime:   reaction,
		ChallengeType:  s.payload.Type,
		Date:           now.Format("2006-01-02"),
	}, nil
}

// CognitiveScore rates a solve from 0 to 100. Each wrong answer costs 20
// points and every started 30 seconds beyond the first 30 costs 5.
func CognitiveScore(attempts int, reaction time.Duration) int {
	score := 100
	if attempts > 1 {
		score -= 20 * (attempts - 1)
	}
	if extra := reaction - 30*time.Second; extra > 0 {
		score -= 5 * int((extra+30*time.Second-1)/(30*time.Second))
	}
	if score < 0 {
		score = 0
	}
	return score
}
