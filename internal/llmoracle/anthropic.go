package llmoracle

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// anthropicSynthesizer synthesizes rules via the Messages API.
type anthropicSynthesizer struct {
	cfg    Config
	client anthropic.Client
}

func newAnthropicSynthesizer(cfg Config) *anthropicSynthesizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicSynthesizer{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (s *anthropicSynthesizer) Synthesize(ctx context.Context, host, url, htmlSample string) (*document.AdaptiveRule, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, ErrLLMUnavailable
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := s.cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(rulePrompt(url, host, htmlSample))),
		},
	})
	if err != nil {
		return nil, errors.Join(ErrLLMUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return nil, ErrLLMUnavailable
	}

	payload, err := extractJSONBlock(sb.String())
	if err != nil {
		return nil, errors.Join(ErrLLMRejected, err)
	}
	return ruleFromPayload(host, model, payload, s.cfg.MinConfidence)
}
