// Package openrouter implements domain.LLMClient against the OpenRouter
// chat API, with OpenAI-compatible embeddings for retrieval.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Client calls OpenRouter for chat and the embeddings endpoint for vectors.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
	counter *tokencount.Counter
}

// New constructs a Client with environment-appropriate timeouts.
func New(cfg config.Config) *Client {
	chatTimeout := 60 * time.Second
	embedTimeout := 30 * time.Second
	if cfg.IsDev() {
		// Free-tier models can be slow; give dev runs more headroom.
		chatTimeout = 300 * time.Second
		embedTimeout = 60 * time.Second
	}
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: chatTimeout},
		embedHC: &http.Client{Timeout: embedTimeout},
		counter: tokencount.NewCounter(),
	}
}

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatJSON sends one system/user prompt pair to the configured chat model and
// returns the raw message content. Rate limits and 5xx responses are retried
// with exponential backoff; other 4xx responses are permanent.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if c.cfg.OpenRouterAPIKey == "" {
		return "", fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}
	model := c.cfg.ChatModel

	body := map[string]any{
		"model":       model,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)

	var out chatResponse
	rateLimited := false
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt; a consumed body cannot be reused.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.chatHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openrouter", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("openrouter", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			slog.Warn("ai provider rate limited",
				slog.String("provider", "openrouter"), slog.String("op", "chat"),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx",
				slog.String("provider", "openrouter"), slog.String("op", "chat"),
				slog.Int("status", resp.StatusCode), slog.String("model", model),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
				slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx",
				slog.String("provider", "openrouter"), slog.String("op", "chat"),
				slog.Int("status", resp.StatusCode), slog.String("model", model),
				slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("ai provider decode error",
				slog.String("provider", "openrouter"), slog.String("op", "chat"), slog.Any("error", err))
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		if rateLimited {
			return "", fmt.Errorf("%w: openrouter chat: %v", domain.ErrUpstreamRateLimit, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: openrouter chat: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("openrouter chat failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty choices from openrouter")
	}
	content := out.Choices[0].Message.Content
	if out.Model != "" && out.Model != model {
		slog.Warn("model substitution detected",
			slog.String("requested_model", model), slog.String("actual_model", out.Model))
	}
	usage := c.counter.ChatUsage(systemPrompt, userPrompt, content, model)
	slog.Debug("openrouter chat completed",
		slog.String("model", model),
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens))
	return content, nil
}

// Embed returns embedding vectors via the configured OpenAI-compatible
// embeddings endpoint.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}

	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	rateLimited := false
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/embeddings", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("embeddings 4xx", slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		return json.Unmarshal(bodyBytes, &out)
	}

	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		if rateLimited {
			return nil, fmt.Errorf("%w: embeddings: %v", domain.ErrUpstreamRateLimit, err)
		}
		return nil, fmt.Errorf("embeddings failed: %w", err)
	}
	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: want %d got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
