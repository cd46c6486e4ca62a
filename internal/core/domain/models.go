package domain

import "time"

// FeedItem is a single unit of content pulled from the platform.
// Items are immutable once parsed and live only for the duration of
// one heartbeat cycle.
type FeedItem struct {
	ID       string
	Title    string
	FullText string
	Author   string
	Upvotes  int
}

// EngagementAction is the closed set of strategies the agent can pick
// for a relevant item.
type EngagementAction string

const (
	UpvoteOnly                EngagementAction = "UPVOTE_ONLY"
	CommentWithInfo           EngagementAction = "COMMENT_WITH_INFO"
	CommentWithComparison     EngagementAction = "COMMENT_WITH_COMPARISON"
	CommentWithRecommendation EngagementAction = "COMMENT_WITH_RECOMMENDATION"
	ObserveOnly               EngagementAction = "OBSERVE_ONLY"
)

// YesNoDecision is the structured answer the brain gives when asked
// whether it can execute an engagement action.
type YesNoDecision struct {
	Yes    bool   `json:"yes"`
	Action string `json:"action"`
}

// Verification holds the challenge attached to a pending post.
type Verification struct {
	Code      string `json:"code"`
	Challenge string `json:"challenge"`
}

// PendingPost is a post awaiting challenge verification. Verification
// is nil when the platform did not attach one.
type PendingPost struct {
	ID           string        `json:"id"`
	Verification *Verification `json:"verification"`
}

// Activity is one audited agent action.
type Activity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Observation records an item the agent saw but chose not to act on.
type Observation struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// LogEntry is a free-form audit line.
type LogEntry struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
