package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vishalmysore/moltbookcore/internal/analyzer"
	"github.com/vishalmysore/moltbookcore/internal/challenge"
	"github.com/vishalmysore/moltbookcore/internal/core/domain"
	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// Config tunes the heartbeat cadence and batch behavior.
type Config struct {
	Interval       time.Duration // minimum gap between cycles
	FeedBatchSize  int
	ItemDelay      time.Duration // blocking pause between remote actions
	DiscoveryQuery string
	DiscoveryLimit int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.FeedBatchSize <= 0 {
		c.FeedBatchSize = 50
	}
	if c.ItemDelay <= 0 {
		c.ItemDelay = 2 * time.Second
	}
	if c.DiscoveryQuery == "" {
		c.DiscoveryQuery = "discussions and questions about agent services"
	}
	if c.DiscoveryLimit <= 0 || c.DiscoveryLimit > 10 {
		c.DiscoveryLimit = 10
	}
}

// Deps are the collaborators one heartbeat drives.
type Deps struct {
	Platform ports.Platform
	Brain    ports.Brain
	Analyzer *analyzer.Analyzer
	Solver   *challenge.Solver
	Approval ports.Approval
	Ledger   ports.Ledger
	Log      *slog.Logger
}

// Heartbeat is the top-level control loop: pull the feed, filter for
// relevance, engage, discover, verify pending posts, and promote
// capabilities when nothing else is happening. At most one cycle runs
// at a time.
type Heartbeat struct {
	platform ports.Platform
	brain    ports.Brain
	analyzer *analyzer.Analyzer
	solver   *challenge.Solver
	approval ports.Approval
	ledger   ports.Ledger
	log      *slog.Logger
	cfg      Config

	Cooldowns *CooldownLedger

	capabilityPrompt string

	running          atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	discoveryResults int

	// Overridable in tests so cycles run without real delays.
	sleep func(time.Duration)
	now   func() time.Time
}

func New(deps Deps, cfg Config) *Heartbeat {
	cfg.applyDefaults()

	h := &Heartbeat{
		platform:  deps.Platform,
		brain:     deps.Brain,
		analyzer:  deps.Analyzer,
		solver:    deps.Solver,
		approval:  deps.Approval,
		ledger:    deps.Ledger,
		log:       deps.Log,
		cfg:       cfg,
		Cooldowns: NewCooldownLedger(),
		sleep:     time.Sleep,
		now:       time.Now,
	}

	h.capabilityPrompt = "These are my skills - " + deps.Analyzer.Skills() +
		" - Create a fun and engaging Moltbook post (max 500 chars) that:\n" +
		"1. Makes a witty joke on topics derived from my skills or AI agents helping with my skills\n" +
		"2. Introduces my skill related capabilities\n" +
		"3. Asks other agents to respond or share their questions on my skills\n" +
		"4. Is friendly, casual, and uses 1-2 emojis\n" +
		"5. Ends with a question to encourage engagement\n\n" +
		"Make it sound natural, not like an advertisement. Be creative!\n" +
		`Return ONLY a JSON object: {"title": "...", "content": "...", "submolt": "general"}`

	return h
}

// Run drives the heartbeat until the context is cancelled. The first
// cycle starts immediately; afterwards the loop waits the configured
// interval, or less when the trigger channel fires.
func (h *Heartbeat) Run(ctx context.Context, trigger <-chan struct{}) {
	for {
		h.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.cfg.Interval):
		case <-trigger:
			h.log.Info("manual heartbeat trigger")
			h.clearLastCheck()
		}
	}
}

// Trigger bypasses the interval guard exactly once and runs a cycle.
func (h *Heartbeat) Trigger(ctx context.Context) {
	h.log.Info("manual heartbeat trigger")
	h.clearLastCheck()
	h.RunCycle(ctx)
}

// RunCycle executes one full engagement cycle. It is a no-op when a
// cycle is already in flight or the previous one completed less than
// the configured interval ago. lastCheck is updated on every exit path
// past the guards, so a failing cycle cannot make the scheduler spin.
func (h *Heartbeat) RunCycle(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		h.log.Debug("cycle already in flight, skipping")
		return
	}
	defer h.running.Store(false)

	if last := h.getLastCheck(); !last.IsZero() && h.now().Sub(last) < h.cfg.Interval {
		h.log.Debug("heartbeat ran recently, skipping")
		return
	}
	defer h.setLastCheckNow()

	h.log.Info("heartbeat starting")
	h.discoveryResults = 0

	claimed, err := h.checkClaimed(ctx)
	if err != nil {
		h.log.Error("status check failed", "error", err)
		h.trackError(ctx, "status check failed: "+err.Error())
		return
	}
	if !claimed {
		h.log.Warn("agent not claimed yet - waiting for human verification")
		return
	}

	h.log.Info("pulling feed", "batch", h.cfg.FeedBatchSize)
	items, err := h.fetchFeed(ctx)
	if err != nil {
		h.log.Error("feed fetch failed", "error", err)
		h.trackError(ctx, "feed fetch failed: "+err.Error())
		return
	}

	relevant := h.analyzer.FindRelevantItems(ctx, items)
	h.log.Info("relevance filter done", "retrieved", len(items), "relevant", len(relevant))

	for _, item := range relevant {
		h.processRelevantItem(ctx, item)
		// Rate limit protection between remote actions.
		h.sleep(h.cfg.ItemDelay)
	}

	h.discoveryResults = h.searchRelevantDiscussions(ctx)

	h.verifyPendingPosts(ctx)

	if h.discoveryResults == 0 {
		h.log.Info("no relevant discussions found via semantic search - posting about capabilities")
		h.postAboutCapabilities(ctx)
	}

	h.log.Info("heartbeat completed")
}

func (h *Heartbeat) getLastCheck() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastCheck
}

func (h *Heartbeat) setLastCheckNow() {
	h.mu.Lock()
	h.lastCheck = h.now()
	h.mu.Unlock()
}

func (h *Heartbeat) clearLastCheck() {
	h.mu.Lock()
	h.lastCheck = time.Time{}
	h.mu.Unlock()
}

// checkClaimed is the hard gate: an unclaimed agent takes no feed
// actions. Absent or malformed status responses count as unclaimed.
func (h *Heartbeat) checkClaimed(ctx context.Context) (bool, error) {
	raw, err := h.platform.GetAgentStatus(ctx)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return false, nil
	}
	return status.Status == "claimed", nil
}

// fetchFeed pulls the subscribed feed and falls back to the public
// listing only on an authentication failure; anything else aborts the
// cycle.
func (h *Heartbeat) fetchFeed(ctx context.Context) ([]domain.FeedItem, error) {
	raw, err := h.platform.GetFeed(ctx, h.cfg.FeedBatchSize)
	if err != nil {
		var apiErr *ports.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
			return nil, err
		}
		h.log.Warn("feed endpoint requires subscriptions - using global posts instead")
		raw, err = h.platform.GetPosts(ctx, "new", h.cfg.FeedBatchSize)
		if err != nil {
			return nil, err
		}
	}
	return h.analyzer.ParseFeed(raw), nil
}

// processRelevantItem attempts an AI-mediated engagement and degrades
// to a plain conversational reply when anything in that path fails.
// One item's failure never aborts the batch.
func (h *Heartbeat) processRelevantItem(ctx context.Context, item domain.FeedItem) {
	h.log.Info("processing relevant item", "author", item.Author, "text", preview(item.FullText, 100))

	decidePrompt := fmt.Sprintf(
		"Found a relevant post from @%s:\n%q\n\n"+
			"Task: Can you execute an action to engage with this post based on your skills? "+
			"If no action maps to your skills, answer no.",
		item.Author, item.FullText)

	decision, err := h.brain.DecideYesNo(ctx, decidePrompt)
	if err != nil {
		h.log.Warn("engagement decision failed, falling back to plain reply", "post", item.ID, "error", err)
		h.trackLog(ctx, "no matching action found for "+item.ID+": "+err.Error())
		h.replyFallback(ctx, item)
		return
	}

	if !decision.Yes {
		h.log.Info("no engagement action for post", "post", item.ID)
		h.trackObservation(ctx, item.ID, item.Author+": "+item.Title)
		return
	}

	if err := h.engage(ctx, item); err != nil {
		h.log.Warn("engagement failed, falling back to plain reply", "post", item.ID, "error", err)
		h.trackLog(ctx, "engagement failed for "+item.ID+": "+err.Error())
		h.replyFallback(ctx, item)
	}
}

// engage executes the classified engagement action against the
// platform, subject to the approval gate and the comment cooldown.
func (h *Heartbeat) engage(ctx context.Context, item domain.FeedItem) error {
	action := analyzer.ClassifyEngagement(item)
	h.log.Info("engagement decided", "post", item.ID, "action", string(action))

	switch action {
	case domain.ObserveOnly:
		h.trackObservation(ctx, item.ID, item.Author+": "+item.Title)
		return nil

	case domain.UpvoteOnly:
		if err := h.platform.UpvotePost(ctx, item.ID); err != nil {
			return err
		}
		h.trackAction(ctx, "UPVOTE", "Post ID: "+item.ID, "upvoted", true)
		return nil

	default:
		if !h.Cooldowns.CanAct(ActionComment) {
			h.log.Info("comment cooldown active, observing instead", "post", item.ID)
			h.trackObservation(ctx, item.ID, item.Author+": "+item.Title)
			return nil
		}

		reply, err := h.brain.Query(ctx, commentPrompt(action, item))
		if err != nil {
			return err
		}

		verdict, err := h.approval.Confirm(ctx, "Comment on post by @"+item.Author, reply)
		if err != nil {
			return fmt.Errorf("approval gate unavailable: %w", err)
		}
		if verdict != ports.ActionApprove {
			return fmt.Errorf("approval gate blocked comment (%s)", verdict)
		}

		if _, err := h.platform.CreateComment(ctx, item.ID, reply); err != nil {
			h.absorbRateLimit(ActionComment, err)
			return err
		}
		h.Cooldowns.RecordAction(ActionComment, h.now())
		h.trackAction(ctx, "NLP_ACTION", "Post ID: "+item.ID, reply, true)
		return nil
	}
}

// replyFallback generates a plain conversational reply when action
// mapping failed. The reply is audited, not posted.
func (h *Heartbeat) replyFallback(ctx context.Context, item domain.FeedItem) {
	prompt := fmt.Sprintf(
		"Found a relevant post from @%s:\n%q\n\n"+
			"Task: Return a funny and engaging response based on your skills.",
		item.Author, item.FullText)

	result, err := h.brain.Query(ctx, prompt)
	if err != nil {
		h.log.Error("fallback reply failed", "post", item.ID, "error", err)
		h.trackError(ctx, "fallback reply failed for "+item.ID+": "+err.Error())
		return
	}
	h.trackAction(ctx, "NLP_REPLY", "Query for @"+item.Author, result, true)
}

// searchRelevantDiscussions runs the supplementary discovery search.
// Failures are non-fatal and count as zero results.
func (h *Heartbeat) searchRelevantDiscussions(ctx context.Context) int {
	h.log.Info("searching for relevant discussions")

	raw, err := h.platform.SemanticSearch(ctx, h.cfg.DiscoveryQuery, "posts", h.cfg.DiscoveryLimit)
	if err != nil {
		h.log.Error("semantic search failed", "error", err)
		return 0
	}

	results := h.analyzer.ParseFeed(raw)
	h.log.Info("semantic search done", "results", len(results))

	for i := 0; i < len(results) && i < 3; i++ {
		// Could engage with these too, but be conservative.
		h.log.Info("search result", "title", results[i].Title)
	}
	return len(results)
}

// verifyPendingPosts resolves challenge verification for every pending
// post on the profile. A failing verification is audited and the loop
// continues.
func (h *Heartbeat) verifyPendingPosts(ctx context.Context) {
	h.log.Info("checking for pending posts requiring verification")

	raw, err := h.platform.GetProfile(ctx)
	if err != nil {
		h.log.Error("profile fetch failed", "error", err)
		h.trackError(ctx, "profile fetch failed: "+err.Error())
		return
	}

	var profile struct {
		Agent *struct {
			PendingPosts []domain.PendingPost `json:"pending_posts"`
		} `json:"agent"`
	}
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		h.log.Error("unparseable profile", "error", err)
		return
	}
	if profile.Agent == nil || len(profile.Agent.PendingPosts) == 0 {
		h.log.Debug("no pending posts to verify")
		return
	}

	h.log.Info("pending posts require verification", "count", len(profile.Agent.PendingPosts))

	for _, pending := range profile.Agent.PendingPosts {
		if pending.Verification == nil {
			continue
		}

		h.log.Info("verifying pending post", "post", pending.ID, "challenge", pending.Verification.Challenge)
		answer := h.solver.Solve(ctx, pending.Verification.Challenge)
		h.log.Info("computed answer", "answer", answer)

		audit := "Challenge: " + pending.Verification.Challenge + "\nAnswer: " + answer
		response, err := h.platform.VerifyPost(ctx, pending.Verification.Code, answer)
		if err != nil {
			h.log.Error("failed to verify post", "post", pending.ID, "error", err)
			h.trackAction(ctx, "VERIFY_FAILED", audit, err.Error(), false)
		} else {
			h.log.Info("verified post", "post", pending.ID)
			h.trackAction(ctx, "VERIFY_CHALLENGE", audit, response, true)
		}

		// Rate limit between verifications.
		h.sleep(h.cfg.ItemDelay)
	}
}

// postAboutCapabilities publishes a promotion post when the post
// cooldown allows it.
func (h *Heartbeat) postAboutCapabilities(ctx context.Context) {
	if !h.Cooldowns.CanAct(ActionPost) {
		h.log.Info("post cooldown active",
			"minutes_remaining", h.Cooldowns.MinutesUntilReady(ActionPost))
		return
	}

	raw, err := h.brain.Query(ctx, h.capabilityPrompt)
	if err != nil {
		h.log.Error("capability post generation failed", "error", err)
		h.trackError(ctx, "capability post failed: "+err.Error())
		return
	}

	title, content, submolt := parsePostPayload(raw)

	verdict, err := h.approval.Confirm(ctx, "Capability post: "+title, content)
	if err != nil || verdict != ports.ActionApprove {
		h.log.Info("capability post not approved", "verdict", string(verdict))
		return
	}

	if _, err := h.platform.CreatePost(ctx, title, content, submolt); err != nil {
		h.absorbRateLimit(ActionPost, err)
		h.log.Error("capability post failed", "error", err)
		h.trackError(ctx, "capability post failed: "+err.Error())
		return
	}

	h.Cooldowns.RecordAction(ActionPost, h.now())
	h.trackAction(ctx, "CAPABILITY_POST", "Automated capability promotion", content, true)
}

// absorbRateLimit feeds a 429 payload into the cooldown ledger; other
// errors leave cooldown state untouched.
func (h *Heartbeat) absorbRateLimit(kind ActionKind, err error) {
	var apiErr *ports.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		h.Cooldowns.ApplyServerFeedback(kind, apiErr.Body)
		h.log.Info("cooldown updated from server feedback",
			"kind", string(kind), "window", h.Cooldowns.Window(kind).String())
	}
}

func commentPrompt(action domain.EngagementAction, item domain.FeedItem) string {
	task := "Write a short, helpful comment"
	switch action {
	case domain.CommentWithInfo:
		task = "Answer the question in the post with a short, informative comment"
	case domain.CommentWithComparison:
		task = "Write a short comment comparing the options discussed in the post"
	case domain.CommentWithRecommendation:
		task = "Write a short comment recommending an approach for the post"
	}
	return fmt.Sprintf("Post from @%s:\n%q\n\nTask: %s. 2-3 sentences, plain text only.",
		item.Author, item.FullText, task)
}

// parsePostPayload extracts {title, content, submolt} from the brain's
// answer, tolerating fenced output; unparseable answers become the
// post body under a default title.
func parsePostPayload(raw string) (title, content, submolt string) {
	cleaned := raw
	if start := strings.Index(raw, "{"); start != -1 {
		if end := strings.LastIndex(raw, "}"); end != -1 && end > start {
			cleaned = raw[start : end+1]
		}
	}

	var p struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Submolt string `json:"submolt"`
	}
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil || p.Title == "" {
		return "What I can help with", raw, "general"
	}
	if p.Submolt == "" {
		p.Submolt = "general"
	}
	return p.Title, p.Content, p.Submolt
}

func (h *Heartbeat) trackAction(ctx context.Context, kind, input, output string, success bool) {
	if err := h.ledger.TrackAction(ctx, kind, input, output, success); err != nil {
		h.log.Warn("ledger write failed", "error", err)
	}
}

func (h *Heartbeat) trackObservation(ctx context.Context, postID, summary string) {
	if err := h.ledger.TrackObservation(ctx, postID, summary); err != nil {
		h.log.Warn("ledger write failed", "error", err)
	}
}

func (h *Heartbeat) trackLog(ctx context.Context, message string) {
	if err := h.ledger.TrackLog(ctx, message); err != nil {
		h.log.Warn("ledger write failed", "error", err)
	}
}

func (h *Heartbeat) trackError(ctx context.Context, message string) {
	if err := h.ledger.TrackError(ctx, message); err != nil {
		h.log.Warn("ledger write failed", "error", err)
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
