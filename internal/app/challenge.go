package app

import (
	"math/rand/v2"
	"time"

	"wake-go/internal/wake"
)

// challengeFactory picks the dismiss puzzle for a payload's challenge type.
type challengeFactory func(challengeType string, d wake.Difficulty) wake.Challenge

// newMathChallenges serves every challenge type with arithmetic, which is
// the only puzzle the terminal can present.
func newMathChallenges() challengeFactory {
	r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	return func(_ string, d wake.Difficulty) wake.Challenge {
		return wake.NewMathChallenge(d, r)
	}
}
