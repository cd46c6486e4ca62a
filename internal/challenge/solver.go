package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

const solvePrompt = `You are solving a mathematical verification challenge. The challenge text may contain obfuscation like random characters, case changes, or extra symbols.
Your task:
1. Extract the mathematical problem from the obfuscated text
2. Solve the mathematical problem step by step
3. Return ONLY the final numeric answer with exactly 2 decimal places
4. Format: XXX.XX (e.g., '42.50', '525.00', '1337.25')
5. Do NOT include any text, explanations, or units - ONLY the number

Challenge text: %s

Answer (number only):`

// Solver turns an obfuscated arithmetic challenge into a canonical
// two-decimal answer string. The brain does the extraction and math;
// Normalize makes the untrusted output safe to submit.
type Solver struct {
	brain ports.Brain
	log   *slog.Logger
}

func NewSolver(brain ports.Brain, log *slog.Logger) *Solver {
	return &Solver{brain: brain, log: log}
}

// Solve never fails: a brain error degrades to the "0.00" fallback so
// a broken collaborator cannot block the verification loop.
func (s *Solver) Solve(ctx context.Context, challenge string) string {
	answer, err := s.brain.Query(ctx, fmt.Sprintf(solvePrompt, challenge))
	if err != nil {
		s.log.Warn("brain failed to solve challenge, submitting fallback", "error", err)
		return Normalize("")
	}
	s.log.Info("raw challenge answer", "answer", answer)
	return Normalize(answer)
}

// Normalize reduces free-text numeric output to a plain decimal with
// exactly two fractional digits, rounding halves away from zero. It is
// total: any input yields a string, "0.00" when nothing numeric
// survives sanitization.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	strict := keep(raw, "0123456789.-")
	if value, err := decimal.NewFromString(strict); err == nil {
		return value.StringFixed(2)
	}

	// Looser pass over the original response for messy answers.
	loose := keep(raw, "0123456789.")
	if loose == "" {
		return "0.00"
	}
	if value, err := decimal.NewFromString(loose); err == nil {
		return value.StringFixed(2)
	}
	return loose
}

func keep(s, alphabet string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(alphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
