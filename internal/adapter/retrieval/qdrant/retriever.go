// Package qdrant grounds scoring prompts in competency material stored in a
// Qdrant collection. It implements domain.ContextRetriever over the Qdrant
// HTTP API with the session's embedding client.
package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Retriever looks up grounding snippets by embedding the query and searching
// the configured collection.
type Retriever struct {
	baseURL    string
	apiKey     string
	collection string
	embedder   domain.LLMClient
	httpClient *http.Client
}

// New constructs a Retriever. embedder provides the query vectors.
func New(baseURL, apiKey, collection string, embedder domain.LLMClient) *Retriever {
	return &Retriever{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureCollection creates the collection when missing.
func (r *Retriever) EnsureCollection(ctx domain.Context, vectorSize int) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/collections/%s", r.baseURL, r.collection), nil)
	r.setHeaders(req)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.ensure: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	payload := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	b, _ := json.Marshal(payload)
	req, _ = http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s", r.baseURL, r.collection), bytes.NewReader(b))
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err = r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.ensure: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=qdrant.ensure: create status %d", resp.StatusCode)
	}
	return nil
}

// Upsert stores snippets with their vectors. texts land in the "text" payload
// field that Lookup reads back.
func (r *Retriever) Upsert(ctx domain.Context, texts []string, metadata []map[string]any) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("op=qdrant.upsert: embed: %w", err)
	}
	points := make([]map[string]any, len(texts))
	for i := range texts {
		payload := map[string]any{"text": texts[i]}
		if i < len(metadata) {
			for k, v := range metadata[i] {
				payload[k] = v
			}
		}
		points[i] = map[string]any{"id": i + 1, "vector": vectors[i], "payload": payload}
	}
	b, _ := json.Marshal(map[string]any{"points": points})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points", r.baseURL, r.collection), bytes.NewReader(b))
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.upsert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=qdrant.upsert: status %d", resp.StatusCode)
	}
	return nil
}

// Lookup embeds the query and returns the text payloads of the topK nearest
// points. Empty results are legal; callers treat grounding as optional.
func (r *Retriever) Lookup(ctx domain.Context, query string, topK int) ([]string, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("op=qdrant.lookup: embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	b, _ := json.Marshal(map[string]any{
		"vector":       vectors[0],
		"limit":        topK,
		"with_payload": true,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", r.baseURL, r.collection), bytes.NewReader(b))
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("op=qdrant.lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("op=qdrant.lookup: status %d", resp.StatusCode)
	}

	var out struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("op=qdrant.lookup: decode: %w", err)
	}
	snippets := make([]string, 0, len(out.Result))
	for _, hit := range out.Result {
		if text, ok := hit.Payload["text"].(string); ok && text != "" {
			snippets = append(snippets, text)
		}
	}
	slog.Debug("grounding lookup", slog.Int("hits", len(snippets)), slog.String("collection", r.collection))
	return snippets, nil
}

func (r *Retriever) setHeaders(req *http.Request) {
	if r.apiKey != "" {
		req.Header.Set("api-key", r.apiKey)
	}
}
