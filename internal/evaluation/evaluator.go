// Package evaluation runs the fixed per-turn analysis chain over a candidate
// answer and assembles the resulting dossier.
package evaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Evaluator executes the answer analysis chain. Stages that fail are recorded
// in the dossier's StageErrors and do not abort stages independent of them.
type Evaluator struct {
	ex        *chain.Executor
	retriever domain.ContextRetriever
}

// New constructs an Evaluator. retriever may be nil; grounding context is
// then omitted from the scoring prompt.
func New(ex *chain.Executor, retriever domain.ContextRetriever) *Evaluator {
	return &Evaluator{ex: ex, retriever: retriever}
}

// Input carries one turn to evaluate.
type Input struct {
	Item     domain.PlanItem
	Question string
	Answer   string
	Context  domain.SessionContext
}

// minimum identify-signal strength for an extension to be scored
const extensionSignalThreshold = 5

// Evaluate runs the chain: intent, identify, extract, score, explain, coach,
// model answer, bias filter. Non-ANSWER intents short-circuit to a minimal
// dossier. The returned error is reserved for contract violations; degraded
// results carry their stage failures inside the dossier.
func (e *Evaluator) Evaluate(ctx domain.Context, in Input) (domain.Dossier, error) {
	d := domain.Dossier{StageErrors: map[string]string{}}

	intent, err := e.classifyIntent(ctx, in, &d)
	if err != nil {
		return d, err
	}
	d.Intent = intent
	observability.TurnsEvaluatedTotal.WithLabelValues(string(intent)).Inc()
	if intent != domain.IntentAnswer {
		// Nothing to score; the flow controller handles the recovery move.
		trimStageErrors(&d)
		return d, nil
	}
	if !in.Item.Type.Scored() {
		// Small talk and wrapup answers carry the intent only; they never
		// get a framework or scores and stay out of the aggregation.
		trimStageErrors(&d)
		return d, nil
	}

	framework, extensions := e.identify(ctx, in, &d)
	d.Framework = framework
	d.Extensions = extensions

	e.extract(ctx, in, framework, &d)
	e.score(ctx, in, framework, extensions, &d)
	if len(d.ScoresMain) > 0 {
		e.explain(ctx, in, &d)
	}
	e.coach(ctx, in, &d)
	e.modelAnswer(ctx, in, framework, &d)
	if d.Feedback != "" || len(d.Strengths) > 0 || len(d.Improvements) > 0 || d.ModelAnswer != nil {
		e.biasFilter(ctx, &d)
	}

	trimStageErrors(&d)
	return d, nil
}

func (e *Evaluator) classifyIntent(ctx domain.Context, in Input, d *domain.Dossier) (domain.Intent, error) {
	res, err := e.ex.Run(ctx, stageIntent, map[string]string{
		"question": in.Question,
		"answer":   in.Answer,
	})
	if err != nil {
		return "", fmt.Errorf("op=evaluation.intent: %w", err)
	}
	if res.Failed() {
		d.StageErrors[StageIntent] = res.Err
		// Degrade to ANSWER so the rest of the chain still runs.
		return domain.IntentAnswer, nil
	}
	switch domain.Intent(strings.ToUpper(getString(res.Data, "intent"))) {
	case domain.IntentAnswer:
		return domain.IntentAnswer, nil
	case domain.IntentIrrelevant:
		return domain.IntentIrrelevant, nil
	case domain.IntentQuestion:
		return domain.IntentQuestion, nil
	case domain.IntentClarificationRequest:
		return domain.IntentClarificationRequest, nil
	case domain.IntentCannotAnswer:
		return domain.IntentCannotAnswer, nil
	default:
		d.StageErrors[StageIntent] = fmt.Sprintf("unknown intent %q", getString(res.Data, "intent"))
		return domain.IntentAnswer, nil
	}
}

func (e *Evaluator) identify(ctx domain.Context, in Input, d *domain.Dossier) (domain.Framework, []domain.Extension) {
	fallback := frameworkForQuestionType(in.Item.Type)
	res, err := e.ex.Run(ctx, stageIdentify, map[string]string{
		"question_type": string(in.Item.Type),
		"answer":        in.Answer,
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageIdentify] = stageErrString(res, err)
		return fallback, nil
	}
	fw, ok := domain.NormalizeFramework(getString(res.Data, "framework"))
	if !ok {
		d.StageErrors[StageIdentify] = fmt.Sprintf("unknown framework %q", getString(res.Data, "framework"))
		fw = fallback
	}
	var exts []domain.Extension
	if signals, ok := res.Data["signals"].(map[string]any); ok {
		for _, code := range []string{"c", "l", "m"} {
			if asInt(signals[code]) >= extensionSignalThreshold {
				exts = append(exts, domain.ExtensionSignals[code])
			}
		}
	}
	return fw, exts
}

func (e *Evaluator) extract(ctx domain.Context, in Input, fw domain.Framework, d *domain.Dossier) {
	keys := domain.FrameworkBaseKeys[fw]
	res, err := e.ex.Run(ctx, stageExtract, map[string]string{
		"framework":      strings.ToUpper(string(fw)),
		"component_keys": strings.Join(keys, ", "),
		"answer":         in.Answer,
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageExtract] = stageErrString(res, err)
		return
	}
	// Keep only declared components; the model sometimes volunteers extras.
	extracted := make(map[string]string, len(keys))
	for _, k := range keys {
		for rawKey, v := range res.Data {
			if norm, ok := domain.NormalizeScoreKey(rawKey); ok && norm == k {
				extracted[k] = getStringValue(v)
			}
		}
	}
	d.Extracted = extracted
}

func (e *Evaluator) score(ctx domain.Context, in Input, fw domain.Framework, exts []domain.Extension, d *domain.Dossier) {
	keys := domain.FrameworkBaseKeys[fw]
	extNames := make([]string, len(exts))
	for i, x := range exts {
		extNames[i] = string(x)
	}
	res, err := e.ex.Run(ctx, stageScore, map[string]string{
		"company":         in.Context.Company,
		"role":            in.Context.Role,
		"question":        in.Question,
		"expected_points": strings.Join(in.Item.ExpectedPoints, "; "),
		"grounding":       e.grounding(ctx, in),
		"framework":       strings.ToUpper(string(fw)),
		"extracted":       jsonString(d.Extracted),
		"answer":          in.Answer,
		"component_keys":  strings.Join(keys, ", "),
		"extension_keys":  strings.Join(extNames, ", "),
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageScore] = stageErrString(res, err)
		return
	}

	main := make(map[string]int, len(keys))
	if raw, ok := res.Data["scores_main"].(map[string]any); ok {
		for rawKey, v := range raw {
			norm, ok := domain.NormalizeScoreKey(rawKey)
			if !ok {
				continue
			}
			for _, k := range keys {
				if norm == k {
					main[k] = domain.ClampMainScore(asInt(v))
				}
			}
		}
	}
	// Absent components score zero.
	for _, k := range keys {
		if _, ok := main[k]; !ok {
			main[k] = 0
		}
	}
	d.ScoresMain = main

	extScores := make(map[domain.Extension]int, len(exts))
	if raw, ok := res.Data["scores_ext"].(map[string]any); ok {
		for _, x := range exts {
			for rawKey, v := range raw {
				if norm, ok := domain.NormalizeScoreKey(rawKey); ok && norm == string(x) {
					extScores[x] = domain.ClampExtScore(asInt(v))
				}
			}
		}
	}
	d.ScoresExt = extScores
	d.ScoringReason = getString(res.Data, "scoring_reason")
}

func (e *Evaluator) explain(ctx domain.Context, in Input, d *domain.Dossier) {
	res, err := e.ex.Run(ctx, stageExplain, map[string]string{
		"rubric": rubricString(in.Item.Rubric),
		"scores": jsonString(d.ScoresMain),
		"answer": in.Answer,
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageExplain] = stageErrString(res, err)
		return
	}
	entries, _ := res.Data["calibration"].([]any)
	for _, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key, ok := domain.NormalizeScoreKey(getString(m, "key"))
		if !ok {
			continue
		}
		d.Calibration = append(d.Calibration, domain.CalibrationEntry{
			Key:       key,
			Score:     domain.ClampMainScore(asInt(m["score"])),
			Rationale: getString(m, "rationale"),
		})
	}
}

func (e *Evaluator) coach(ctx domain.Context, in Input, d *domain.Dossier) {
	res, err := e.ex.Run(ctx, stageCoach, map[string]string{
		"question": in.Question,
		"answer":   in.Answer,
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageCoach] = stageErrString(res, err)
		return
	}
	d.Strengths = stringSlice(res.Data["strengths"])
	d.Improvements = stringSlice(res.Data["improvements"])
	d.Feedback = getString(res.Data, "feedback")
}

func (e *Evaluator) modelAnswer(ctx domain.Context, in Input, fw domain.Framework, d *domain.Dossier) {
	res, err := e.ex.Run(ctx, stageModelAnswer, map[string]string{
		"company":   in.Context.Company,
		"role":      in.Context.Role,
		"question":  in.Question,
		"framework": strings.ToUpper(string(fw)),
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageModelAnswer] = stageErrString(res, err)
		return
	}
	text := getString(res.Data, "model_answer")
	if text == "" {
		d.StageErrors[StageModelAnswer] = "empty model answer"
		return
	}
	maFw := fw
	if parsed, ok := domain.NormalizeFramework(getString(res.Data, "model_answer_framework")); ok {
		maFw = parsed
	}
	d.ModelAnswer = &domain.ModelAnswer{
		Text:            text,
		Framework:       maFw,
		SelectionReason: getString(res.Data, "selection_reason"),
	}
}

func (e *Evaluator) biasFilter(ctx domain.Context, d *domain.Dossier) {
	modelAnswer := ""
	if d.ModelAnswer != nil {
		modelAnswer = d.ModelAnswer.Text
	}
	res, err := e.ex.Run(ctx, stageBias, map[string]string{
		"feedback":     d.Feedback,
		"strengths":    strings.Join(d.Strengths, "\n"),
		"improvements": strings.Join(d.Improvements, "\n"),
		"model_answer": modelAnswer,
	})
	if err != nil || res.Failed() {
		d.StageErrors[StageBias] = stageErrString(res, err)
		return
	}
	flagged, _ := res.Data["flagged"].(bool)
	if !flagged {
		return
	}
	issues, _ := res.Data["issues"].([]any)
	for _, raw := range issues {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		d.BiasIssues = append(d.BiasIssues, domain.BiasIssue{
			Span:         getString(m, "span"),
			Category:     getString(m, "category"),
			Reason:       getString(m, "reason"),
			SuggestedFix: getString(m, "suggested_fix"),
			Severity:     getString(m, "severity"),
		})
	}
	// Substitute the sanitized texts but keep the issue trail.
	if s := getString(res.Data, "sanitized_feedback"); s != "" {
		d.Feedback = s
	}
	if ss := stringSlice(res.Data["sanitized_strengths"]); len(ss) > 0 {
		d.Strengths = ss
	}
	if ss := stringSlice(res.Data["sanitized_improvements"]); len(ss) > 0 {
		d.Improvements = ss
	}
	if s := getString(res.Data, "sanitized_model_answer"); s != "" && d.ModelAnswer != nil {
		d.ModelAnswer.Text = s
	}
}

func (e *Evaluator) grounding(ctx domain.Context, in Input) string {
	if e.retriever == nil {
		return ""
	}
	snippets, err := e.retriever.Lookup(ctx, in.Question, 3)
	if err != nil {
		slog.Warn("grounding lookup failed", slog.Any("error", err))
		return ""
	}
	return strings.Join(snippets, "\n")
}

func frameworkForQuestionType(t domain.QuestionType) domain.Framework {
	switch t {
	case domain.QuestionSTAR:
		return domain.FrameworkSTAR
	case domain.QuestionCase:
		return domain.FrameworkCase
	case domain.QuestionSystem:
		return domain.FrameworkSystemDesign
	default:
		return domain.FrameworkCompetency
	}
}

func trimStageErrors(d *domain.Dossier) {
	if len(d.StageErrors) == 0 {
		d.StageErrors = nil
	}
}

func stageErrString(res chain.StageResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Err
}

func getString(m map[string]any, key string) string {
	return getStringValue(m[key])
}

func getStringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := getStringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func rubricString(bands []domain.RubricBand) string {
	if len(bands) == 0 {
		return "(no rubric provided)"
	}
	sorted := make([]domain.RubricBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	var b strings.Builder
	for _, band := range sorted {
		fmt.Fprintf(&b, "- %s (%d): %s\n", band.Grade, band.Score, band.Descriptor)
	}
	return b.String()
}
