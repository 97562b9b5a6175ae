package wake

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// MathChallenge asks for the result of a small arithmetic expression.
type MathChallenge struct {
	a, b, c int
	answer  int
}

// NewMathChallenge generates a problem sized by difficulty.
// easy: a + b; medium: a * b + c; hard: a * b - c with larger operands.
func NewMathChallenge(d Difficulty, r *rand.Rand) *MathChallenge {
	switch d {
	case DifficultyHard:
		a, b, c := 12+r.IntN(88), 3+r.IntN(17), 10+r.IntN(190)
		return &MathChallenge{a: a, b: b, c: -c, answer: a*b - c}
	case DifficultyMedium:
		a, b, c := 2+r.IntN(11), 2+r.IntN(11), 1+r.IntN(50)
		return &MathChallenge{a: a, b: b, c: c, answer: a*b + c}
	default:
		a, b := 1+r.IntN(50), 1+r.IntN(50)
		return &MathChallenge{a: a, b: b, answer: a + b}
	}
}

func (m *MathChallenge) Prompt() string {
	switch {
	case m.c > 0:
		return fmt.Sprintf("%d × %d + %d = ?", m.a, m.b, m.c)
	case m.c < 0:
		return fmt.Sprintf("%d × %d - %d = ?", m.a, m.b, -m.c)
	default:
		return fmt.Sprintf("%d + %d = ?", m.a, m.b)
	}
}

func (m *MathChallenge) Check(answer string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	return err == nil && n == m.answer
}
