// Package chain runs single LLM prompt stages with rendering, repair and
// a corrective retry. Stages are stateless; an Executor is safe for
// concurrent use across sessions.
package chain

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/jsonx"
)

// Stage describes one prompt step of an evaluation chain.
type Stage struct {
	Name        string
	System      string
	Template    string
	Temperature float64
	MaxTokens   int
}

// StageResult is the tagged outcome of a stage run. A failed stage is a
// legal value: Err carries the reason and Data is nil. Contract errors
// (missing template variables) are returned as Go errors instead.
type StageResult struct {
	Stage string
	Data  map[string]any
	Err   string
}

// Failed reports whether the stage produced no usable data.
func (r StageResult) Failed() bool { return r.Err != "" }

var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Render substitutes {variable} placeholders in template. Every placeholder
// must be present in vars; a missing one is a caller bug and yields
// domain.ErrMissingVariable.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("op=chain.render: %w: %s", domain.ErrMissingVariable, strings.Join(missing, ","))
	}
	return out, nil
}

// Executor runs stages against an LLM client.
type Executor struct {
	llm             domain.LLMClient
	counter         *tokencount.Counter
	maxPromptTokens int
	model           string
}

// NewExecutor constructs an Executor. maxPromptTokens bounds the rendered
// prompt; oversized variable values are trimmed before rendering.
func NewExecutor(llm domain.LLMClient, model string, maxPromptTokens int) *Executor {
	if maxPromptTokens <= 0 {
		maxPromptTokens = 12000
	}
	return &Executor{
		llm:             llm,
		counter:         tokencount.NewCounter(),
		maxPromptTokens: maxPromptTokens,
		model:           model,
	}
}

const correctiveSystem = "You repair malformed JSON. Return ONLY valid JSON matching the schema of the original request. Fill any missing fields with empty values. No prose, no markdown."

// Run executes one stage. Provider failures and unparseable responses are
// reported inside the StageResult; the only error returned is a rendering
// contract violation.
func (e *Executor) Run(ctx domain.Context, stage Stage, vars map[string]string) (res StageResult, err error) {
	res.Stage = stage.Name
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("stage panic recovered", slog.String("stage", stage.Name), slog.Any("recover", rec))
			res = StageResult{Stage: stage.Name, Err: fmt.Sprintf("panic: %v", rec)}
			err = nil
		}
	}()

	prompt, err := Render(stage.Template, e.trimVars(vars))
	if err != nil {
		return StageResult{Stage: stage.Name}, err
	}

	raw, callErr := e.llm.ChatJSON(ctx, stage.System, prompt, stage.Temperature, stage.MaxTokens)
	if callErr != nil {
		observability.StageFailuresTotal.WithLabelValues(stage.Name, "provider").Inc()
		slog.Warn("stage provider call failed", slog.String("stage", stage.Name), slog.Any("error", callErr))
		return StageResult{Stage: stage.Name, Err: fmt.Sprintf("provider: %v", callErr)}, nil
	}

	data, parseErr := jsonx.Repair(raw)
	if parseErr == nil {
		return StageResult{Stage: stage.Name, Data: data}, nil
	}

	// One corrective round-trip: show the model its own malformed output.
	slog.Warn("stage output unparseable, attempting corrective retry",
		slog.String("stage", stage.Name), slog.Any("error", parseErr))
	corrective := fmt.Sprintf("Original request:\n%s\n\nYour previous response was not valid JSON:\n%s\n\nReturn the corrected JSON only.", prompt, raw)
	raw2, callErr := e.llm.ChatJSON(ctx, correctiveSystem, corrective, 0, stage.MaxTokens)
	if callErr != nil {
		observability.StageFailuresTotal.WithLabelValues(stage.Name, "provider").Inc()
		return StageResult{Stage: stage.Name, Err: fmt.Sprintf("provider (corrective): %v", callErr)}, nil
	}
	data, parseErr = jsonx.Repair(raw2)
	if parseErr != nil {
		observability.StageFailuresTotal.WithLabelValues(stage.Name, "parse").Inc()
		return StageResult{Stage: stage.Name, Err: fmt.Sprintf("parse: %v", parseErr)}, nil
	}
	return StageResult{Stage: stage.Name, Data: data}, nil
}

// trimVars caps each variable value so the rendered prompt stays within the
// token budget. The cap is split evenly across variables.
func (e *Executor) trimVars(vars map[string]string) map[string]string {
	if len(vars) == 0 {
		return vars
	}
	perVar := e.maxPromptTokens / len(vars)
	if perVar <= 0 {
		perVar = 1
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		n, err := e.counter.CountTokens(v, e.model)
		if err != nil || n <= perVar {
			out[k] = v
			continue
		}
		// Approximate token-to-rune budget; a token averages ~4 chars.
		out[k] = trimToApproxTokens(v, perVar)
		slog.Debug("trimmed oversized stage variable",
			slog.String("var", k), slog.Int("tokens", n), slog.Int("budget", perVar))
	}
	return out
}

func trimToApproxTokens(s string, tokens int) string {
	maxRunes := tokens * 4
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
