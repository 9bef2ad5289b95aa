package redpanda

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewProducer(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed brokers")
}

func TestCreateTopicRejectsEmptyName(t *testing.T) {
	t.Parallel()
	err := createTopicIfNotExists(context.Background(), nil, "", 1, 1)
	require.Error(t, err)
}

func TestTurnEvaluatedEventShape(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(turnEvaluatedEvent{
		SessionID: "sess-1",
		Label:     "2-1",
		Dossier:   domain.Dossier{Intent: domain.IntentAnswer},
		At:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "sess-1", got["session_id"])
	assert.Equal(t, "2-1", got["label"])
	assert.Contains(t, got, "dossier")
}

func TestSessionFinishedEventShape(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(sessionFinishedEvent{
		SessionID:      "sess-1",
		Recommendation: domain.DecisionLeanHire,
		At:             time.Now().UTC(),
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "lean_hire", got["recommendation"])
}
