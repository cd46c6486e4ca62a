package approval

import (
	"context"
	"log/slog"

	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// LoggingGate approves every request and logs it. Useful for headless
// agents and development, where no human sits behind the gate.
type LoggingGate struct {
	log *slog.Logger
}

func NewLoggingGate(log *slog.Logger) *LoggingGate {
	return &LoggingGate{log: log}
}

var _ ports.Approval = (*LoggingGate)(nil)

func (g *LoggingGate) Confirm(ctx context.Context, title, body string) (ports.UserAction, error) {
	g.log.Info("approval request auto-approved", "title", title, "body", body)
	return ports.ActionApprove, nil
}
