package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ErrJudgeDisabled is returned while the failure guard holds the endpoint
// in cooldown.
var ErrJudgeDisabled = errors.New("judgment endpoint disabled after repeated failures")

const judgeSystemPrompt = "You analyze workplace evidence against a project plan. " +
	"Answer with one JSON object and nothing else."

// ChatJudge implements core.Judge over a ChatClient, asking for JSON object
// responses and rejecting anything else.
type ChatJudge struct {
	client      ChatClient
	guard       *Guard
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewChatJudge creates a ChatJudge. A nil guard never disables the endpoint.
func NewChatJudge(client ChatClient, cfg models.LLMConfig, guard *Guard, logger *slog.Logger) *ChatJudge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ChatJudge{client: client, guard: guard, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens, logger: logger}
}

var _ core.Judge = (*ChatJudge)(nil)

// Judge sends the prompt and decodes the answer as a JSON object.
func (j *ChatJudge) Judge(ctx context.Context, req core.JudgeRequest) (map[string]any, error) {
	if !j.guard.Allow() {
		return nil, fmt.Errorf("%w until %s", ErrJudgeDisabled, j.guard.DisabledUntil().Format(time.RFC3339))
	}
	start := time.Now()
	resp, err := j.client.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		Temperature:    j.temperature,
		MaxTokens:      j.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		j.guard.RecordFailure()
		return nil, fmt.Errorf("judging %s: %w", req.Task, err)
	}
	obj, err := ParseJSONObject(resp.Content)
	if err != nil {
		j.guard.RecordFailure()
		return nil, fmt.Errorf("judging %s: %w", req.Task, err)
	}
	j.guard.RecordSuccess()
	j.logger.Debug("judgment received", "task", req.Task, "took", time.Since(start), "finish", resp.FinishReason)
	return obj, nil
}

// ParseJSONObject decodes text as a JSON object. Markdown code fences and
// prose around the outermost braces are tolerated; arrays, scalars and
// malformed JSON are errors.
func ParseJSONObject(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if strings.HasPrefix(s, "[") {
		return nil, fmt.Errorf("response is a JSON array, not an object")
	}
	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start < 0 || end < start {
			return nil, fmt.Errorf("response is not a JSON object: %s", preview(text))
		}
		s = s[start : end+1]
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", preview(text))
	}
	return obj, nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return s
}
