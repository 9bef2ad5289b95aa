package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type countingLLM struct {
	chatCalls  int32
	embedCalls int32
	embedSeen  [][]string
	err        error
}

func (c *countingLLM) ChatJSON(_ domain.Context, _, user string, _ float64, _ int) (string, error) {
	atomic.AddInt32(&c.chatCalls, 1)
	if c.err != nil {
		return "", c.err
	}
	return "resp:" + user, nil
}

func (c *countingLLM) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.embedCalls, 1)
	if c.err != nil {
		return nil, c.err
	}
	c.embedSeen = append(c.embedSeen, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestChatCacheHitsOnDeterministicCalls(t *testing.T) {
	t.Parallel()
	base := &countingLLM{}
	c, err := NewCachingClient(base, 8, 8)
	require.NoError(t, err)

	out1, err := c.ChatJSON(context.Background(), "sys", "prompt", 0, 100)
	require.NoError(t, err)
	out2, err := c.ChatJSON(context.Background(), "sys", "prompt", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&base.chatCalls))

	// Different max tokens means a different key.
	_, err = c.ChatJSON(context.Background(), "sys", "prompt", 0, 200)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&base.chatCalls))
}

func TestSampledChatIsNotCached(t *testing.T) {
	t.Parallel()
	base := &countingLLM{}
	c, err := NewCachingClient(base, 8, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.ChatJSON(context.Background(), "sys", "prompt", 0.6, 100)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&base.chatCalls))
}

func TestChatErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	base := &countingLLM{err: errors.New("boom")}
	c, err := NewCachingClient(base, 8, 8)
	require.NoError(t, err)

	_, err = c.ChatJSON(context.Background(), "sys", "prompt", 0, 100)
	require.Error(t, err)
	base.err = nil
	out, err := c.ChatJSON(context.Background(), "sys", "prompt", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "resp:prompt", out)
}

func TestEmbedFetchesOnlyMisses(t *testing.T) {
	t.Parallel()
	base := &countingLLM{}
	c, err := NewCachingClient(base, 8, 8)
	require.NoError(t, err)

	vecs, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	vecs2, err := c.Embed(context.Background(), []string{"alpha", "gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs2, 3)
	assert.Equal(t, vecs[0], vecs2[0])
	assert.Equal(t, vecs[1], vecs2[2])

	assert.Equal(t, int32(2), atomic.LoadInt32(&base.embedCalls))
	// The second upstream call only carried the miss.
	require.Len(t, base.embedSeen, 2)
	assert.Equal(t, []string{"gamma"}, base.embedSeen[1])
}

func TestDisabledCachesReturnBase(t *testing.T) {
	t.Parallel()
	base := &countingLLM{}
	c, err := NewCachingClient(base, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.LLMClient(base), c)
}
