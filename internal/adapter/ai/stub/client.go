// Package stub is a deterministic LLM client for local development without
// provider credentials. Responses are keyed off the prompt's stage wording.
package stub

import (
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Client returns fixed, schema-valid JSON per stage.
type Client struct{}

// New constructs a stub Client.
func New() *Client { return &Client{} }

var responses = []struct {
	marker string
	body   string
}{
	{"Classify the candidate utterance", `{"intent": "ANSWER", "confidence": 0.9}`},
	{"Identify the structural", `{"framework": "STAR", "signals": {"c": 4, "l": 3, "m": 6}}`},
	{"Extract the framework", `{"situation": "stub situation", "task": "stub task", "action": "stub action", "result": "stub result"}`},
	{"Score the candidate answer", `{"scores_main": {"situation": 12, "task": 12, "action": 13, "result": 11}, "scores_ext": {"metrics": 6}, "scoring_reason": "stubbed"}`},
	{"Explain each component", `{"calibration": [{"key": "action", "score": 13, "rationale": "stubbed"}]}`},
	{"Coach the candidate", `{"strengths": ["clear structure"], "improvements": ["add numbers"], "feedback": "Stub feedback."}`},
	{"Write a model answer", `{"model_answer": "A structured exemplar covering situation, task, action and result with one metric.", "model_answer_framework": "STAR", "selection_reason": "behavioral question"}`},
	{"Audit the feedback", `{"flagged": false}`},
	{"Generate at most 2 follow-up", `{"followups": ["Can you quantify the outcome?"]}`},
	{"Design the core and wrapup", `{"core": [{"question_type": "star", "question": "Tell me about a project you are proud of.", "expected_points": ["your role", "the outcome"]}], "wrapup": [{"question_type": "wrapup", "question": "Do you have questions for us?"}]}`},
	{"Write a 3-5 sentence", `{"overall_summary": "The candidate gave structured answers with moderate evidence."}`},
}

// ChatJSON matches the prompt against known stage wording and returns the
// canned body; unknown prompts get an empty object.
func (c *Client) ChatJSON(_ domain.Context, _, userPrompt string, _ float64, _ int) (string, error) {
	for _, r := range responses {
		if strings.Contains(userPrompt, r.marker) {
			return r.body, nil
		}
	}
	return "{}", nil
}

// Embed returns small fixed vectors.
func (c *Client) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
