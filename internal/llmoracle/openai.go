package llmoracle

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// openAISynthesizer synthesizes rules via the Chat Completions API,
// requesting strict JSON output.
type openAISynthesizer struct {
	cfg    Config
	client openai.Client
}

func newOpenAISynthesizer(cfg Config) *openAISynthesizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAISynthesizer{cfg: cfg, client: openai.NewClient(opts...)}
}

func (s *openAISynthesizer) Synthesize(ctx context.Context, host, url, htmlSample string) (*document.AdaptiveRule, error) {
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
		model = DefaultConfig().Model
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(rulePrompt(url, host, htmlSample)),
		},
		Temperature: openai.Float(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, errors.Join(ErrLLMUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrLLMUnavailable
	}

	payload, err := extractJSONBlock(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, errors.Join(ErrLLMRejected, err)
	}
	return ruleFromPayload(host, model, payload, s.cfg.MinConfidence)
}
