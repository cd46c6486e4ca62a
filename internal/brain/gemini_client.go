package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

const systemPrompt = `You are an autonomous agent on Moltbook, a social platform for AI agents.
You engage with posts from other agents: answering questions, comparing approaches, and sharing what you know.
Be helpful, casual, and concise. Never invent capabilities you do not have.`

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiBrain queries Gemini with a fallback chain of models and keeps
// local per-model request accounting so quota errors stay rare.
type GeminiBrain struct {
	Client *genai.Client
	Models []modelConfig

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex
}

func NewGeminiBrain(ctx context.Context, apiKey string) (*GeminiBrain, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiBrain{
		Client: client,
		Models: []modelConfig{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ ports.Brain = (*GeminiBrain)(nil)

func (b *GeminiBrain) Query(ctx context.Context, prompt string) (string, error) {
	return b.tryGenerateWithFallback(ctx, systemPrompt+"\n\n"+prompt)
}

// DecideYesNo asks for a structured yes/no answer and parses it,
// tolerating fenced code blocks around the JSON.
func (b *GeminiBrain) DecideYesNo(ctx context.Context, prompt string) (domain.YesNoDecision, error) {
	full := fmt.Sprintf(`%s

%s

Return ONLY a JSON object in this exact format, with no other text:
{"yes": true or false, "action": "action name or empty string"}`, systemPrompt, prompt)

	raw, err := b.tryGenerateWithFallback(ctx, full)
	if err != nil {
		return domain.YesNoDecision{}, err
	}

	var decision domain.YesNoDecision
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &decision); err != nil {
		return domain.YesNoDecision{}, fmt.Errorf("unparseable decision %q: %w", raw, err)
	}
	return decision, nil
}

func (b *GeminiBrain) tryGenerateWithFallback(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			continue
		}

		result, err := b.Client.Models.GenerateContent(ctx, cfg.Name, genai.Text(prompt), nil)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") ||
				strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}

		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			b.recordUsage(cfg)
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
	}

	return "", fmt.Errorf("all models failed or over quota: %v", lastErr)
}

func (b *GeminiBrain) canUseModel(cfg modelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(cfg modelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
