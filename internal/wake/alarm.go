package wake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Period is the AM/PM half of an alarm's stored 12-hour time.
type Period string

const (
	AM Period = "AM"
	PM Period = "PM"
)

// ParsePeriod accepts "AM" or "PM" in any case.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(AM):
		return AM, nil
	case string(PM):
		return PM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Schedule keywords. Anything else must be a comma-separated day list.
const (
	ScheduleOnce     = "Once"
	ScheduleDaily    = "Daily"
	ScheduleWeekdays = "Weekdays"
	ScheduleWeekends = "Weekends"
)

// Challenge defaults, shared with the deep-link fallbacks.
const (
	DefaultChallenge     = "Challenge"
	DefaultChallengeIcon = "calculate"
	DefaultChallengeType = "alarm"
)

// Difficulty only affects challenge generation.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Alarm is the user-facing scheduling unit.
//
// Time and Period together encode a single minute-of-day value. They are only
// ever interpreted through TimeToMinutesOfDay.
type Alarm struct {
	ID            string
	Label         string
	Time          string
	Period        Period
	Schedule      string
	Enabled       bool
	Challenge     string
	ChallengeType string
	ChallengeIcon string
	Difficulty    Difficulty
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the time and schedule fields.
func (a *Alarm) Validate() error {
	if _, err := TimeToMinutesOfDay(a.Time, a.Period); err != nil {
		return err
	}
	if _, err := ParseScheduleToDays(a.Schedule); err != nil {
		return err
	}
	return nil
}

// IsOnce reports whether the alarm fires a single time.
func (a *Alarm) IsOnce() bool {
	return strings.EqualFold(strings.TrimSpace(a.Schedule), ScheduleOnce)
}

// Payload builds the notification payload attached to the alarm's OS entries.
func (a *Alarm) Payload() Payload {
	return Payload{
		AlarmID:       a.ID,
		Time:          a.Time,
		Period:        a.Period,
		Challenge:     a.Challenge,
		ChallengeIcon: a.ChallengeIcon,
		Type:          a.ChallengeType,
	}
}

// Revision fingerprints every field that shapes an OS entry. An entry
// scheduled under a different revision belongs to an older edit of the alarm.
func (a *Alarm) Revision() string {
	h := sha256.New()
	for _, f := range []string{a.Time, string(a.Period), a.Schedule, a.Challenge, a.ChallengeIcon, a.ChallengeType} {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// AlarmCompletion is written once a dismiss challenge is solved. Never mutated.
type AlarmCompletion struct {
	ID             string
	AlarmID        string
	TargetTime     time.Time
	ActualTime     time.Time
	CognitiveScore int
	ReactionTime   time.Duration
	ChallengeType  string
	Date           string
}
