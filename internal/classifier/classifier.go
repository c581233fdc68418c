package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"patchwatch/internal/config"
	"patchwatch/internal/logging"
)

// Opinion is the classifier's assessment of a candidate update.
type Opinion struct {
	Confidence float64
	Reason     string
}

// Service produces a secondary confidence opinion for a detected update.
// Implementations must treat failures as transient; callers ignore errors
// and proceed with pattern-only confidence.
type Service interface {
	Classify(ctx context.Context, title, detected string) (Opinion, error)
}

type openAIService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Service from configuration. It returns nil when the
// classifier is disabled or no API key is available; callers must treat a
// nil Service as "pattern-only".
func New(cfg config.Classifier, logger *slog.Logger) Service {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "classifier"),
	}
}

const systemPrompt = `You judge whether a release listing represents a genuine software update for a tracked title.
Respond with JSON only, no prose: {"confidence": <0.0-1.0>, "reason": "<short explanation>"}.
High confidence means the listing clearly advertises a newer version or build of the same title.`

func (s *openAIService) Classify(ctx context.Context, title, detected string) (Opinion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Tracked title: %s\nListing text: %s", title, detected)
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return Opinion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Opinion{}, fmt.Errorf("chat completion returned no choices")
	}
	opinion, err := parseOpinion(resp.Choices[0].Message.Content)
	if err != nil {
		return Opinion{}, err
	}
	s.logger.Debug("classifier opinion",
		logging.String("title", title),
		logging.Float64("confidence", opinion.Confidence))
	return opinion, nil
}

func parseOpinion(content string) (Opinion, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap JSON in a code fence despite instructions.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	var raw struct {
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Opinion{}, fmt.Errorf("parse classifier response: %w", err)
	}
	if raw.Confidence < 0 {
		raw.Confidence = 0
	}
	if raw.Confidence > 1 {
		raw.Confidence = 1
	}
	return Opinion{Confidence: raw.Confidence, Reason: raw.Reason}, nil
}
