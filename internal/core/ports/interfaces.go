package ports

import (
	"context"
	"fmt"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
)

// Platform is the outbound adapter to the remote community API. Every
// method returns the raw JSON body; parsing belongs to the caller.
type Platform interface {
	GetAgentStatus(ctx context.Context) (string, error)
	GetFeed(ctx context.Context, count int) (string, error)
	GetPosts(ctx context.Context, sort string, count int) (string, error)
	SemanticSearch(ctx context.Context, query, scope string, limit int) (string, error)
	GetProfile(ctx context.Context) (string, error)
	VerifyPost(ctx context.Context, code, answer string) (string, error)
	CreatePost(ctx context.Context, title, content, submolt string) (string, error)
	CreateComment(ctx context.Context, postID, content string) (string, error)
	UpvotePost(ctx context.Context, postID string) error
}

// APIError is a remote failure tagged with the HTTP status code, so
// callers branch on the code instead of sniffing message text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform request failed: status %d: %s", e.StatusCode, e.Body)
}

// Brain is the AI decision collaborator. Query is best-effort free
// text; DecideYesNo maps a question onto a structured decision.
type Brain interface {
	Query(ctx context.Context, prompt string) (string, error)
	DecideYesNo(ctx context.Context, prompt string) (domain.YesNoDecision, error)
}

// UserAction is the outcome of an approval-gate check.
type UserAction string

const (
	ActionApprove    UserAction = "approve"
	ActionRegenerate UserAction = "regenerate"
	ActionSkip       UserAction = "skip"
)

// Approval is the human/policy checkpoint for outward-facing actions.
// Anything other than ActionApprove blocks the action.
type Approval interface {
	Confirm(ctx context.Context, title, body string) (UserAction, error)
}

// Ledger is the fire-and-forget audit sink. Callers log returned
// errors at most; a failing ledger never aborts a cycle.
type Ledger interface {
	TrackAction(ctx context.Context, kind, input, output string, success bool) error
	TrackObservation(ctx context.Context, postID, summary string) error
	TrackLog(ctx context.Context, message string) error
	TrackError(ctx context.Context, message string) error
}
