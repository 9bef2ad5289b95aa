package jsonx_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/pkg/jsonx"
)

func TestRepairValidInput(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{"intent":"ANSWER","confidence":0.9}`)
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", m["intent"])
	assert.InDelta(t, 0.9, m["confidence"], 1e-9)
}

func TestRepairIdempotent(t *testing.T) {
	t.Parallel()
	first, err := jsonx.Repair(`{"a": [1, 2,], "b": 'x'}`)
	require.NoError(t, err)
	b, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := jsonx.Repair(string(b))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRepairMarkdownFence(t *testing.T) {
	t.Parallel()
	in := "Here is the result:\n```json\n{\"framework\": \"star\"}\n```\nDone."
	m, err := jsonx.Repair(in)
	require.NoError(t, err)
	assert.Equal(t, "star", m["framework"])
}

func TestRepairSurroundingProse(t *testing.T) {
	t.Parallel()
	in := `Sure! The evaluation is {"score": 17, "key": "action"} as requested.`
	m, err := jsonx.Repair(in)
	require.NoError(t, err)
	assert.Equal(t, float64(17), m["score"])
}

func TestRepairTrailingCommas(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{"strengths": ["clear", "specific",], "score": 12,}`)
	require.NoError(t, err)
	assert.Equal(t, []any{"clear", "specific"}, m["strengths"])
}

func TestRepairSmartQuotesAndSingleQuotes(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{“intent”: “ANSWER”}`)
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", m["intent"])
}

func TestRepairUnquotedKeys(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{intent: "QUESTION", needs_followup: true}`)
	require.NoError(t, err)
	assert.Equal(t, "QUESTION", m["intent"])
	assert.Equal(t, true, m["needs_followup"])
}

func TestRepairPythonLiterals(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{"flagged": False, "sanitized_text": None, "ok": True}`)
	require.NoError(t, err)
	assert.Equal(t, false, m["flagged"])
	assert.Nil(t, m["sanitized_text"])
	assert.Equal(t, true, m["ok"])
}

func TestRepairPythonWordsInsideStringsUntouched(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`{"feedback": "The candidate said True things about None-critical paths"}`)
	require.NoError(t, err)
	assert.Equal(t, "The candidate said True things about None-critical paths", m["feedback"])
}

func TestRepairMissingCommaBetweenLines(t *testing.T) {
	t.Parallel()
	in := "{\"a\": \"1\"\n\"b\": \"2\"}"
	m, err := jsonx.Repair(in)
	require.NoError(t, err)
	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "2", m["b"])
}

func TestRepairNestedBracesInStrings(t *testing.T) {
	t.Parallel()
	m, err := jsonx.Repair(`prefix {"code": "if x { return }", "n": 1} suffix`)
	require.NoError(t, err)
	assert.Equal(t, "if x { return }", m["code"])
}

func TestRepairUnrepairable(t *testing.T) {
	t.Parallel()
	_, err := jsonx.Repair("I cannot answer that question.")
	require.Error(t, err)
	assert.ErrorIs(t, err, jsonx.ErrUnrepairable)

	_, err = jsonx.Repair("")
	assert.ErrorIs(t, err, jsonx.ErrUnrepairable)
}

func TestRepairInto(t *testing.T) {
	t.Parallel()
	var out struct {
		Intent string `json:"intent"`
		Scores map[string]int
	}
	err := jsonx.RepairInto("```json\n{\"intent\": \"ANSWER\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", out.Intent)
}
