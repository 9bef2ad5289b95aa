package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

var overviewStage = chain.Stage{
	Name:        "report_overview",
	System:      "You summarize interview performance for a hiring committee. Return ONLY valid JSON.",
	Temperature: 0.2,
	MaxTokens:   800,
	Template: `Write a 3-5 sentence overall summary of the candidate's interview performance. Stay factual: only reference the material below, no speculation about the candidate.

[Role] {role}
[Weighted score 0-100] {weighted}
[Recommendation] {recommendation}
[Recurring strengths]
{strengths}

[Recurring weaknesses]
{weaknesses}

Output JSON:
{"overall_summary": "..."}`,
}

// Assembler builds the final report from a finished session's transcript.
type Assembler struct {
	ex         *chain.Executor
	policy     HiringPolicy
	classifier ThemeClassifier
}

// NewAssembler constructs an Assembler. ex may be nil (the deterministic
// summary is used), classifier may be nil (KeywordClassifier is used).
func NewAssembler(ex *chain.Executor, policy HiringPolicy, classifier ThemeClassifier) *Assembler {
	if policy == (HiringPolicy{}) {
		policy = DefaultPolicy
	}
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	return &Assembler{ex: ex, policy: policy, classifier: classifier}
}

// Assemble builds the report. Everything except the narrative summary is
// deterministic; validation problems are recorded, never fatal.
func (a *Assembler) Assemble(ctx domain.Context, s domain.Session, turns []domain.Turn) domain.Report {
	agg := Aggregate(turns)
	weighted, decision := a.policy.Decide(agg)
	strengths, weaknesses := a.classifier.Classify(turns)

	r := domain.Report{
		SessionID:        s.ID,
		StrengthsMatrix:  strengths,
		WeaknessesMatrix: weaknesses,
		Aggregation:      agg,
		WeightedScore:    weighted,
		Recommendation:   decision,
		QuestionFeedback: feedbackCards(turns),
		CreatedAt:        time.Now().UTC(),
	}
	r.ValidationErrors = append(validateEvidence(r, turns), validateEnums(turns)...)
	r.OverallSummary = a.summary(ctx, s, r)

	observability.ObserveReport(weighted, string(decision))
	return r
}

// feedbackCards keeps one card per main question, in transcript order.
func feedbackCards(turns []domain.Turn) []domain.QuestionFeedback {
	var cards []domain.QuestionFeedback
	for _, t := range turns {
		if t.IsFollowup() || t.Dossier == nil {
			continue
		}
		card := domain.QuestionFeedback{
			Label:      t.Label,
			Question:   t.Question,
			Framework:  t.Dossier.Framework,
			ScoresMain: t.Dossier.ScoresMain,
			Feedback:   t.Dossier.Feedback,
		}
		if t.Dossier.ModelAnswer != nil {
			card.ModelAnswer = t.Dossier.ModelAnswer.Text
		}
		cards = append(cards, card)
	}
	return cards
}

// validateEvidence checks every theme evidence label against the transcript.
func validateEvidence(r domain.Report, turns []domain.Turn) []string {
	known := make(map[string]bool, len(turns))
	for _, t := range turns {
		known[t.Label] = true
	}
	var errs []string
	check := func(kind string, matrix []domain.ThemeEvidence) {
		for _, te := range matrix {
			for _, label := range te.Evidence {
				if !known[label] {
					errs = append(errs, fmt.Sprintf("%s theme %q references unknown turn %q", kind, te.Theme, label))
				}
			}
		}
	}
	check("strength", r.StrengthsMatrix)
	check("weakness", r.WeaknessesMatrix)
	return errs
}

// validateEnums checks each dossier's declared intent and framework against
// the recognized enum values.
func validateEnums(turns []domain.Turn) []string {
	var errs []string
	for _, t := range turns {
		d := t.Dossier
		if d == nil {
			continue
		}
		if !d.Intent.Valid() {
			errs = append(errs, fmt.Sprintf("turn %q has unrecognized intent %q", t.Label, d.Intent))
		}
		if d.Framework != "" && !d.Framework.Valid() {
			errs = append(errs, fmt.Sprintf("turn %q has unrecognized framework %q", t.Label, d.Framework))
		}
	}
	return errs
}

func (a *Assembler) summary(ctx domain.Context, s domain.Session, r domain.Report) string {
	if a.ex != nil {
		res, err := a.ex.Run(ctx, overviewStage, map[string]string{
			"role":           s.Context.Role,
			"weighted":       fmt.Sprintf("%.2f", r.WeightedScore),
			"recommendation": string(r.Recommendation),
			"strengths":      themeLines(r.StrengthsMatrix),
			"weaknesses":     themeLines(r.WeaknessesMatrix),
		})
		if err == nil && !res.Failed() {
			if text, ok := res.Data["overall_summary"].(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
		slog.Warn("report overview generation failed, using deterministic summary",
			slog.String("session_id", s.ID))
	}
	return fallbackSummary(r)
}

func themeLines(matrix []domain.ThemeEvidence) string {
	if len(matrix) == 0 {
		return "none"
	}
	lines := make([]string, 0, len(matrix))
	for _, te := range matrix {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", te.Theme, te.Severity, strings.Join(te.Evidence, ", ")))
	}
	return strings.Join(lines, "\n")
}

// fallbackSummary renders a fixed-form summary from the aggregation alone.
func fallbackSummary(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weighted interview score %.2f out of 100; recommendation: %s.",
		r.WeightedScore, strings.ReplaceAll(string(r.Recommendation), "_", " "))

	if len(r.Aggregation.MainAvg) > 0 {
		fws := make([]string, 0, len(r.Aggregation.MainAvg))
		for fw := range r.Aggregation.MainAvg {
			fws = append(fws, string(fw))
		}
		sort.Strings(fws)
		parts := make([]string, 0, len(fws))
		for _, fw := range fws {
			parts = append(parts, fmt.Sprintf("%s %.0f", fw, r.Aggregation.MainAvg[domain.Framework(fw)]))
		}
		fmt.Fprintf(&b, " Framework averages: %s.", strings.Join(parts, ", "))
	}
	if n := len(r.StrengthsMatrix); n > 0 {
		fmt.Fprintf(&b, " %d recurring strength theme(s) identified.", n)
	}
	if n := len(r.WeaknessesMatrix); n > 0 {
		fmt.Fprintf(&b, " %d recurring improvement theme(s) identified.", n)
	}
	return b.String()
}
