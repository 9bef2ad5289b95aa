// Package ai provides decorators around domain.LLMClient.
package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// cachingClient wraps an LLMClient with LRU caches: embeddings by text hash,
// deterministic chat completions (temperature 0) by prompt hash. Safe for
// concurrent use.
type cachingClient struct {
	base  domain.LLMClient
	chat  *lru.Cache[string, string]
	embed *lru.Cache[string, []float32]
}

// NewCachingClient wraps base with chat and embedding caches. A non-positive
// capacity disables that cache; with both disabled base is returned as is.
func NewCachingClient(base domain.LLMClient, chatCapacity, embedCapacity int) (domain.LLMClient, error) {
	if base == nil || (chatCapacity <= 0 && embedCapacity <= 0) {
		return base, nil
	}
	c := &cachingClient{base: base}
	var err error
	if chatCapacity > 0 {
		if c.chat, err = lru.New[string, string](chatCapacity); err != nil {
			return nil, fmt.Errorf("op=ai.cache: chat lru: %w", err)
		}
	}
	if embedCapacity > 0 {
		if c.embed, err = lru.New[string, []float32](embedCapacity); err != nil {
			return nil, fmt.Errorf("op=ai.cache: embed lru: %w", err)
		}
	}
	return c, nil
}

// ChatJSON caches only temperature-zero calls; sampled output is not
// meaningfully cacheable.
func (c *cachingClient) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	cacheable := c.chat != nil && temperature == 0
	var key string
	if cacheable {
		key = hashKey(systemPrompt, userPrompt, fmt.Sprintf("%d", maxTokens))
		if v, ok := c.chat.Get(key); ok {
			return v, nil
		}
	}
	out, err := c.base.ChatJSON(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	if err != nil {
		return "", err
	}
	if cacheable {
		c.chat.Add(key, out)
	}
	return out, nil
}

// Embed resolves cached vectors per text and fetches only the misses, in one
// batched upstream call.
func (c *cachingClient) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.embed == nil {
		return c.base.Embed(ctx, texts)
	}
	res := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.embed.Get(hashKey(t)); ok {
			res[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missIdx) > 0 {
		vecs, err := c.base.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("op=ai.cache: embed count mismatch: want %d got %d", len(missTexts), len(vecs))
		}
		for j, idx := range missIdx {
			res[idx] = vecs[j]
			c.embed.Add(hashKey(missTexts[j]), vecs[j])
		}
	}
	return res, nil
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.TrimSpace(p)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
