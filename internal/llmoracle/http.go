package llmoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// httpSynthesizer is the zero-SDK fallback: a hand-rolled OpenAI-compatible
// chat-completions POST, for Ollama and OpenRouter-style endpoints the
// vendored SDKs don't cover.
type httpSynthesizer struct {
	cfg    Config
	client *http.Client
}

func newHTTPSynthesizer(cfg Config) *httpSynthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &httpSynthesizer{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (s *httpSynthesizer) apiURL() string {
	if s.cfg.BaseURL != "" {
		return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/v1/chat/completions"
	}
	switch strings.ToLower(strings.TrimSpace(s.cfg.Provider)) {
	case "ollama":
		return "http://localhost:11434/v1/chat/completions"
	case "openrouter":
		return "https://openrouter.ai/api/v1/chat/completions"
	default:
		return "https://openrouter.ai/api/v1/chat/completions"
	}
}

func (s *httpSynthesizer) setAuthHeaders(req *http.Request) {
	if s.cfg.APIKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	if strings.EqualFold(s.cfg.Provider, "openrouter") {
		req.Header.Set("HTTP-Referer", "https://openpaper.local")
		req.Header.Set("X-Title", "openpaper")
	}
}

func (s *httpSynthesizer) Synthesize(ctx context.Context, host, url, htmlSample string) (*document.AdaptiveRule, error) {
	if s.cfg.APIKey == "" && !strings.EqualFold(s.cfg.Provider, "ollama") {
		return nil, ErrLLMUnavailable
	}

	model := s.cfg.Model
	if model == "" {
		model = DefaultConfig().Model
	}

	reqBody := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": rulePrompt(url, host, htmlSample)},
		},
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmoracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL(), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("llmoracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.setAuthHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrLLMUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrLLMUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	content, err := parseOpenAICompatibleContent(body)
	if err != nil {
		return nil, errors.Join(ErrLLMUnavailable, err)
	}

	payload, err := extractJSONBlock(content)
	if err != nil {
		return nil, errors.Join(ErrLLMRejected, err)
	}
	return ruleFromPayload(host, model, payload, s.cfg.MinConfidence)
}

// parseOpenAICompatibleContent extracts the first choice's message content
// from an OpenAI/OpenRouter/Ollama-compatible chat-completions response.
func parseOpenAICompatibleContent(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("llmoracle: parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llmoracle: empty response from provider")
	}
	return resp.Choices[0].Message.Content, nil
}
