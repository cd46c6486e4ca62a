package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// defaultKeywords is the lexical gate used when startup keyword
// extraction fails.
var defaultKeywords = []string{"ai", "agent", "automation"}

// Analyzer decides which feed items deserve engagement. Relevance is a
// two-stage gate: a cheap keyword match first, then a semantic judgment
// delegated to the brain. The keyword set is computed once at
// construction and read-only afterwards.
type Analyzer struct {
	brain    ports.Brain
	log      *slog.Logger
	skills   string
	keywords []string
}

func New(ctx context.Context, brain ports.Brain, skills string, log *slog.Logger) *Analyzer {
	a := &Analyzer{
		brain:  brain,
		log:    log,
		skills: skills,
	}
	a.keywords = a.extractKeywords(ctx)
	return a
}

func (a *Analyzer) Skills() string { return a.skills }

func (a *Analyzer) Keywords() []string { return a.keywords }

// extractKeywords asks the brain to boil the skill list down to 5-10
// single-word topics. Any failure falls back to the default set.
func (a *Analyzer) extractKeywords(ctx context.Context) []string {
	prompt := "Extract 5-10 single-word broad topics/keywords from these agent skills. " +
		"Return ONLY a comma-separated list of lowercase words (e.g. 'go, coding, ai').\n\nSkills:\n" + a.skills

	response, err := a.brain.Query(ctx, prompt)
	if err != nil {
		a.log.Warn("keyword extraction failed, using defaults", "error", err)
		return append([]string(nil), defaultKeywords...)
	}

	response = strings.NewReplacer("\"", "", ".", "").Replace(strings.TrimSpace(response))

	var keywords []string
	for _, part := range strings.Split(response, ",") {
		keyword := strings.ToLower(strings.TrimSpace(part))
		if len(keyword) > 2 {
			keywords = append(keywords, keyword)
		}
	}
	if len(keywords) == 0 {
		a.log.Warn("keyword extraction returned nothing usable, using defaults")
		return append([]string(nil), defaultKeywords...)
	}

	a.log.Info("initialized relevance keywords", "keywords", keywords)
	return keywords
}

// apiFeedItem matches both the feed and search response shapes.
type apiFeedItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Upvotes int    `json:"upvotes"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
}

// ParseFeed maps a raw feed or search response into feed items. The
// platform uses "posts" for feed responses and "results" for semantic
// search; both are accepted. Malformed JSON yields an empty slice.
func (a *Analyzer) ParseFeed(feedJSON string) []domain.FeedItem {
	var response struct {
		Posts   []apiFeedItem `json:"posts"`
		Results []apiFeedItem `json:"results"`
	}
	if err := json.Unmarshal([]byte(feedJSON), &response); err != nil {
		a.log.Error("failed to parse feed", "error", err)
		return nil
	}

	var items []domain.FeedItem
	for _, raw := range append(response.Posts, response.Results...) {
		items = append(items, domain.FeedItem{
			ID:       raw.ID,
			Title:    raw.Title,
			FullText: raw.Content,
			Author:   raw.Author.Name,
			Upvotes:  raw.Upvotes,
		})
	}
	return items
}

// IsRelevant reports whether the agent should engage with the text.
// When no keyword matches it answers false without consulting the
// brain; that short-circuit is the cost-control gate.
func (a *Analyzer) IsRelevant(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if !a.keywordMatch(text) {
		return false
	}

	prompt := fmt.Sprintf(`You are an AI decision engine for an autonomous agent.
Your Skills/Capabilities:
%s

Analyze this feed item text:
"%s"

Task: Determine if this text is relevant to your skills or if you can provide a helpful response based on your capabilities.
Return ONLY a JSON object with this format:
{"relevant": boolean, "reason": "short explanation"}`,
		a.skills, strings.ReplaceAll(text, `"`, `\"`))

	response, err := a.brain.Query(ctx, prompt)
	if err != nil {
		a.log.Error("semantic relevance check failed", "error", err)
		return true // keyword gate already passed
	}

	var verdict struct {
		Relevant bool   `json:"relevant"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripFences(response)), &verdict); err != nil {
		a.log.Warn("unparseable relevance decision, keeping keyword result", "response", response)
		return true
	}

	if verdict.Relevant {
		a.log.Info("relevant item found", "text", truncate(text, 50), "reason", verdict.Reason)
	} else {
		a.log.Debug("irrelevant item", "text", truncate(text, 50), "reason", verdict.Reason)
	}
	return verdict.Relevant
}

func (a *Analyzer) keywordMatch(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range a.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// FindRelevantItems filters the batch through IsRelevant, preserving
// input order.
func (a *Analyzer) FindRelevantItems(ctx context.Context, feed []domain.FeedItem) []domain.FeedItem {
	var relevant []domain.FeedItem
	for _, item := range feed {
		if a.IsRelevant(ctx, item.FullText) {
			relevant = append(relevant, item)
		}
	}
	return relevant
}

// ClassifyEngagement maps an item onto an engagement strategy. Rules
// are evaluated in a fixed priority order; first match wins.
func ClassifyEngagement(item domain.FeedItem) domain.EngagementAction {
	text := strings.ToLower(item.FullText)

	// Questions deserve answers.
	if strings.Contains(text, "?") {
		return domain.CommentWithInfo
	}

	// Comparisons - we're good at those.
	if strings.Contains(text, "vs") || strings.Contains(text, "compare") ||
		strings.Contains(text, "better than") {
		return domain.CommentWithComparison
	}

	// Good content - just upvote.
	if item.Upvotes > 5 || strings.Contains(text, "insight") ||
		strings.Contains(text, "learned") || strings.Contains(text, "interesting") {
		return domain.UpvoteOnly
	}

	return domain.ObserveOnly
}

// stripFences removes a leading/trailing markdown code fence from an
// AI response so the JSON inside can be parsed.
func stripFences(s string) string {
	if i := strings.Index(s, "```json"); i != -1 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j != -1 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i != -1 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j != -1 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
