package challenge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
)

type stubBrain struct {
	answer string
	err    error
}

func (b stubBrain) Query(ctx context.Context, prompt string) (string, error) {
	return b.answer, b.err
}

func (b stubBrain) DecideYesNo(ctx context.Context, prompt string) (domain.YesNoDecision, error) {
	return domain.YesNoDecision{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain integer", "42", "42.00"},
		{"already two decimals", "525.00", "525.00"},
		{"extra precision", "3.14159", "3.14"},
		{"half rounds away from zero", "1.005", "1.01"},
		{"negative", "-3.14159", "-3.14"},
		{"surrounding prose", "The answer is 42.5!", "42.50"},
		{"fenced output", "```42```", "42.00"},
		{"minus buried in text", "abc-12def", "-12.00"},
		{"no numeric token", "no numbers here", "0.00"},
		{"empty", "", "0.00"},
		{"whitespace only", "   ", "0.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw))
		})
	}
}

func TestNormalizeFormat(t *testing.T) {
	format := regexp.MustCompile(`^-?\d+\.\d{2}$`)

	for _, raw := range []string{"7", "0.1", "answer: 1337.25", "-0.005", "about 99 or so"} {
		got := Normalize(raw)
		assert.Regexp(t, format, got, "input %q", raw)
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	// Even residue that is not a valid number comes back as a string
	// instead of a panic or error.
	assert.NotEmpty(t, Normalize("1.2.3"))
	assert.Equal(t, "0.00", Normalize("---"))
}

func TestSolveFormatsBrainAnswer(t *testing.T) {
	s := NewSolver(stubBrain{answer: "Answer: 42.499999"}, discardLogger())
	require.Equal(t, "42.50", s.Solve(context.Background(), "CaLc: 84/2 pls"))
}

func TestSolveBrainFailureFallsBack(t *testing.T) {
	s := NewSolver(stubBrain{err: errors.New("model overloaded")}, discardLogger())
	require.Equal(t, "0.00", s.Solve(context.Background(), "what is 2+2"))
}
