package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
)

type countingBrain struct {
	queries int
	respond func(prompt string) (string, error)
}

func (b *countingBrain) Query(ctx context.Context, prompt string) (string, error) {
	b.queries++
	return b.respond(prompt)
}

func (b *countingBrain) DecideYesNo(ctx context.Context, prompt string) (domain.YesNoDecision, error) {
	return domain.YesNoDecision{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brainWith answers the keyword-extraction prompt with keywords and
// every other prompt with relevance.
func brainWith(keywords, relevance string) *countingBrain {
	return &countingBrain{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Extract 5-10") {
			return keywords, nil
		}
		return relevance, nil
	}}
}

func TestKeywordExtraction(t *testing.T) {
	b := brainWith("Go, AI, ml, golang, testing.", "")
	a := New(context.Background(), b, "go programming help", discardLogger())

	// Words shorter than 3 characters are dropped, the rest lower-cased.
	assert.Equal(t, []string{"golang", "testing"}, a.Keywords())
}

func TestKeywordExtractionFailureUsesDefaults(t *testing.T) {
	b := &countingBrain{respond: func(string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	a := New(context.Background(), b, "skills", discardLogger())

	assert.Equal(t, defaultKeywords, a.Keywords())
}

func TestIsRelevantShortCircuitsWithoutKeyword(t *testing.T) {
	b := brainWith("golang", `{"relevant": true, "reason": "should not be asked"}`)
	a := New(context.Background(), b, "go help", discardLogger())
	extractionQueries := b.queries

	assert.False(t, a.IsRelevant(context.Background(), "my tomato plants are thriving"))
	assert.Equal(t, extractionQueries, b.queries, "brain must not be consulted when no keyword matches")

	assert.False(t, a.IsRelevant(context.Background(), "   "))
	assert.Equal(t, extractionQueries, b.queries)
}

func TestIsRelevantDelegatesToBrain(t *testing.T) {
	b := brainWith("golang", `{"relevant": false, "reason": "only mentions the word"}`)
	a := New(context.Background(), b, "go help", discardLogger())
	before := b.queries

	assert.False(t, a.IsRelevant(context.Background(), "golang mentioned in passing"))
	assert.Equal(t, before+1, b.queries)
}

func TestIsRelevantStripsCodeFences(t *testing.T) {
	b := brainWith("golang", "```json\n{\"relevant\": true, \"reason\": \"go question\"}\n```")
	a := New(context.Background(), b, "go help", discardLogger())

	assert.True(t, a.IsRelevant(context.Background(), "how do I test golang code?"))
}

func TestIsRelevantFallsBackToKeywordResult(t *testing.T) {
	// Unparseable judgment keeps the keyword-gate result.
	b := brainWith("golang", "hmm, probably?")
	a := New(context.Background(), b, "go help", discardLogger())
	assert.True(t, a.IsRelevant(context.Background(), "a golang question"))

	// So does an outright brain failure.
	failing := &countingBrain{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Extract 5-10") {
			return "golang", nil
		}
		return "", errors.New("timeout")
	}}
	a = New(context.Background(), failing, "go help", discardLogger())
	assert.True(t, a.IsRelevant(context.Background(), "another golang question"))
}

func TestFindRelevantItemsPreservesOrder(t *testing.T) {
	b := brainWith("golang", `{"relevant": true, "reason": "ok"}`)
	a := New(context.Background(), b, "go help", discardLogger())

	feed := []domain.FeedItem{
		{ID: "a", FullText: "golang generics question"},
		{ID: "b", FullText: "pasta recipe"},
		{ID: "c", FullText: "more golang talk"},
	}

	relevant := a.FindRelevantItems(context.Background(), feed)
	require.Len(t, relevant, 2)
	assert.Equal(t, "a", relevant[0].ID)
	assert.Equal(t, "c", relevant[1].ID)
}

func TestParseFeed(t *testing.T) {
	b := brainWith("golang", "")
	a := New(context.Background(), b, "go help", discardLogger())

	items := a.ParseFeed(`{
		"posts": [
			{"id":"p1","title":"T1","content":"body one","upvotes":3,"author":{"name":"alice"}}
		],
		"results": [
			{"id":"r1","title":"T2","content":"body two","author":{"name":"bob"}}
		]
	}`)
	require.Len(t, items, 2)
	assert.Equal(t, domain.FeedItem{ID: "p1", Title: "T1", FullText: "body one", Author: "alice", Upvotes: 3}, items[0])
	assert.Equal(t, "r1", items[1].ID)

	assert.Empty(t, a.ParseFeed("not json at all"))
	assert.Empty(t, a.ParseFeed(`{"unrelated": true}`))
}

func TestClassifyEngagement(t *testing.T) {
	cases := []struct {
		name string
		item domain.FeedItem
		want domain.EngagementAction
	}{
		{"question", domain.FeedItem{FullText: "How do I deploy this thing?"}, domain.CommentWithInfo},
		{"comparison vs", domain.FeedItem{FullText: "postgres vs sqlite for agents"}, domain.CommentWithComparison},
		{"comparison phrase", domain.FeedItem{FullText: "anything better than cron here"}, domain.CommentWithComparison},
		{"popular item", domain.FeedItem{FullText: "a plain update", Upvotes: 6}, domain.UpvoteOnly},
		{"insightful text", domain.FeedItem{FullText: "today I learned about goroutines"}, domain.UpvoteOnly},
		{"nothing special", domain.FeedItem{FullText: "hello world from my bot"}, domain.ObserveOnly},
		{"empty", domain.FeedItem{}, domain.ObserveOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyEngagement(tc.item))
		})
	}
}

func TestClassifyEngagementPriorityOrder(t *testing.T) {
	// A question that also contains a comparison: the question rule
	// wins because it is evaluated first.
	item := domain.FeedItem{FullText: "Should I compare X and Y, or is X better than Y?", Upvotes: 50}
	assert.Equal(t, domain.CommentWithInfo, ClassifyEngagement(item))
}
