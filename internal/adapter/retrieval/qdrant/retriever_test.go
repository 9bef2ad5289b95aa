package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type fixedEmbedder struct{ calls int }

func (f *fixedEmbedder) ChatJSON(domain.Context, string, string, float64, int) (string, error) {
	return "{}", nil
}

func (f *fixedEmbedder) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

func TestLookupReturnsTextPayloads(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"result": [
			{"payload": {"text": "STAR expects a measurable result."}},
			{"payload": {"text": "Competency answers need observable behavior."}},
			{"payload": {"other": "no text field"}}
		]}`))
	}))
	defer srv.Close()

	r := New(srv.URL, "secret", "competency_context", &fixedEmbedder{})
	snippets, err := r.Lookup(context.Background(), "incident response", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"STAR expects a measurable result.",
		"Competency answers need observable behavior.",
	}, snippets)
	assert.Equal(t, "/collections/competency_context/points/search", gotPath)
	assert.EqualValues(t, 3, gotBody["limit"])
	assert.Equal(t, true, gotBody["with_payload"])
}

func TestLookupEmptyQueryShortCircuits(t *testing.T) {
	t.Parallel()
	emb := &fixedEmbedder{}
	r := New("http://unused", "", "c", emb)

	snippets, err := r.Lookup(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Nil(t, snippets)

	snippets, err = r.Lookup(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Nil(t, snippets)
	assert.Zero(t, emb.calls)
}

func TestLookupServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(srv.URL, "", "c", &fixedEmbedder{})
	_, err := r.Lookup(context.Background(), "query", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	t.Parallel()
	var createdBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	r := New(srv.URL, "", "competency_context", &fixedEmbedder{})
	require.NoError(t, r.EnsureCollection(context.Background(), 1536))
	vectors := createdBody["vectors"].(map[string]any)
	assert.EqualValues(t, 1536, vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestUpsertStoresTextPayload(t *testing.T) {
	t.Parallel()
	var gotBody struct {
		Points []struct {
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(srv.URL, "", "c", &fixedEmbedder{})
	err := r.Upsert(context.Background(),
		[]string{"snippet one"},
		[]map[string]any{{"source": "ncs"}})
	require.NoError(t, err)
	require.Len(t, gotBody.Points, 1)
	assert.Equal(t, "snippet one", gotBody.Points[0].Payload["text"])
	assert.Equal(t, "ncs", gotBody.Points[0].Payload["source"])
}
