package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/report"
)

func answerTurn(label string, fw domain.Framework, scores map[string]int) domain.Turn {
	return domain.Turn{
		Label:        label,
		QuestionType: questionTypeFor(fw),
		Question:     "Q " + label,
		Dossier: &domain.Dossier{
			Intent:     domain.IntentAnswer,
			Framework:  fw,
			ScoresMain: scores,
		},
	}
}

func questionTypeFor(fw domain.Framework) domain.QuestionType {
	if fw == domain.FrameworkSystemDesign {
		return domain.QuestionSystem
	}
	return domain.QuestionType(fw)
}

func TestAggregateNormalizesToHundred(t *testing.T) {
	t.Parallel()
	turns := []domain.Turn{
		// STAR max is 80: 40/80 -> 50.
		answerTurn("1", domain.FrameworkSTAR, map[string]int{"situation": 10, "task": 10, "action": 10, "result": 10}),
		// Second STAR turn: 80/80 -> 100. Average 75.
		answerTurn("2", domain.FrameworkSTAR, map[string]int{"situation": 20, "task": 20, "action": 20, "result": 20}),
		// Competency max is 60: 30/60 -> 50.
		answerTurn("3", domain.FrameworkCompetency, map[string]int{"competency": 10, "behavior": 10, "impact": 10}),
	}
	turns[0].Dossier.ScoresExt = map[domain.Extension]int{domain.ExtMetrics: 8}
	turns[1].Dossier.ScoresExt = map[domain.Extension]int{domain.ExtMetrics: 6, domain.ExtLearning: 10}

	agg := report.Aggregate(turns)
	assert.InDelta(t, 75, agg.MainAvg[domain.FrameworkSTAR], 0.001)
	assert.InDelta(t, 50, agg.MainAvg[domain.FrameworkCompetency], 0.001)
	assert.InDelta(t, 70, agg.ExtAvg[domain.ExtMetrics], 0.001)
	assert.InDelta(t, 100, agg.ExtAvg[domain.ExtLearning], 0.001)
}

func TestAggregateSkipsNonAnswersAndMissingDossiers(t *testing.T) {
	t.Parallel()
	turns := []domain.Turn{
		{Label: "1"},
		{Label: "2", Dossier: &domain.Dossier{Intent: domain.IntentCannotAnswer}},
		answerTurn("3", domain.FrameworkSTAR, map[string]int{"action": 20}),
	}
	agg := report.Aggregate(turns)
	require.Len(t, agg.MainAvg, 1)
	// 20/80 -> 25 even though only one component was scored.
	assert.InDelta(t, 25, agg.MainAvg[domain.FrameworkSTAR], 0.001)
}

func TestAggregateExcludesNonScoredTypes(t *testing.T) {
	t.Parallel()
	smallTalk := domain.Turn{
		Label:        "1",
		QuestionType: domain.QuestionIcebreaking,
		Dossier: &domain.Dossier{
			// A scored dossier on a small-talk turn must still be excluded.
			Intent:     domain.IntentAnswer,
			Framework:  domain.FrameworkSTAR,
			ScoresMain: map[string]int{"situation": 13, "task": 12, "action": 13, "result": 11},
			ScoresExt:  map[domain.Extension]int{domain.ExtMetrics: 6},
		},
	}
	wrapup := smallTalk
	wrapup.Label = "6"
	wrapup.QuestionType = domain.QuestionWrapup
	unknown := smallTalk
	unknown.Label = "7"
	unknown.QuestionType = "chitchat"

	// Small talk alone yields an empty aggregation, not a hiring signal.
	agg := report.Aggregate([]domain.Turn{smallTalk, wrapup, unknown})
	assert.Empty(t, agg.MainAvg)
	assert.Empty(t, agg.ExtAvg)

	// Alongside a real core answer only the core answer counts.
	core := answerTurn("3", domain.FrameworkSTAR, map[string]int{"situation": 20, "task": 20, "action": 20, "result": 20})
	agg = report.Aggregate([]domain.Turn{smallTalk, core, wrapup})
	assert.InDelta(t, 100, agg.MainAvg[domain.FrameworkSTAR], 0.001)
	assert.Empty(t, agg.ExtAvg)
}

func TestAggregateDeterministic(t *testing.T) {
	t.Parallel()
	turns := []domain.Turn{
		answerTurn("1", domain.FrameworkSTAR, map[string]int{"situation": 13, "task": 17, "action": 9, "result": 11}),
		answerTurn("2", domain.FrameworkCase, map[string]int{"problem": 15, "structure": 12, "analysis": 14, "recommendation": 10}),
	}
	first := report.Aggregate(turns)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, report.Aggregate(turns))
	}
}

func TestDecideTiers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		mainAvg  float64
		expected domain.HiringDecision
	}{
		{"strong hire at 80", 80, domain.DecisionStrongHire},
		{"hire just below 80", 79.99, domain.DecisionHire},
		{"hire at 70", 70, domain.DecisionHire},
		{"lean hire at 60", 60, domain.DecisionLeanHire},
		{"no hire below 60", 59.99, domain.DecisionNoHire},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			agg := domain.ScoreAggregation{
				MainAvg: map[domain.Framework]float64{domain.FrameworkCompetency: tc.mainAvg},
			}
			weighted, decision := report.DefaultPolicy.Decide(agg)
			assert.InDelta(t, tc.mainAvg, weighted, 0.001)
			assert.Equal(t, tc.expected, decision)
		})
	}
}

func TestDecideWeightsMainAndExt(t *testing.T) {
	t.Parallel()
	agg := domain.ScoreAggregation{
		MainAvg: map[domain.Framework]float64{domain.FrameworkSTAR: 90},
		ExtAvg:  map[domain.Extension]float64{domain.ExtLearning: 50},
	}
	weighted, decision := report.DefaultPolicy.Decide(agg)
	// 0.7*90 + 0.3*50 = 78
	assert.InDelta(t, 78, weighted, 0.001)
	assert.Equal(t, domain.DecisionHire, decision)
}

func TestMetricsGateCapsAtLeanHire(t *testing.T) {
	t.Parallel()
	agg := domain.ScoreAggregation{
		MainAvg: map[domain.Framework]float64{domain.FrameworkSTAR: 100},
		ExtAvg:  map[domain.Extension]float64{domain.ExtMetrics: 10},
	}
	// 0.7*100 + 0.3*10 = 73 would be hire; the metrics gate caps it.
	weighted, decision := report.DefaultPolicy.Decide(agg)
	assert.InDelta(t, 73, weighted, 0.001)
	assert.Equal(t, domain.DecisionLeanHire, decision)
}

func TestStarGateCapsAtLeanHire(t *testing.T) {
	t.Parallel()
	agg := domain.ScoreAggregation{
		MainAvg: map[domain.Framework]float64{
			domain.FrameworkSTAR:         55,
			domain.FrameworkSystemDesign: 100,
		},
	}
	// Mean 77.5 would be hire; STAR below 60 caps it.
	weighted, decision := report.DefaultPolicy.Decide(agg)
	assert.InDelta(t, 77.5, weighted, 0.001)
	assert.Equal(t, domain.DecisionLeanHire, decision)
}

func TestGatesDoNotLiftLowScores(t *testing.T) {
	t.Parallel()
	agg := domain.ScoreAggregation{
		MainAvg: map[domain.Framework]float64{domain.FrameworkSTAR: 30},
	}
	_, decision := report.DefaultPolicy.Decide(agg)
	assert.Equal(t, domain.DecisionNoHire, decision)
}

func TestDecideEmptyAggregation(t *testing.T) {
	t.Parallel()
	weighted, decision := report.DefaultPolicy.Decide(domain.ScoreAggregation{})
	assert.Zero(t, weighted)
	assert.Equal(t, domain.DecisionNoHire, decision)
}

func TestKeywordClassifierGroupsAndDeduplicates(t *testing.T) {
	t.Parallel()
	turns := []domain.Turn{
		{Label: "3", Dossier: &domain.Dossier{
			Strengths:    []string{"Quantified the impact with metrics", "Clear structured narrative"},
			Improvements: []string{"Expand on team collaboration"},
		}},
		{Label: "4", Dossier: &domain.Dossier{
			Strengths:    []string{"Backed claims with numbers and metrics", "Strong sense of ownership, drove the fix"},
			Improvements: []string{"Align with stakeholders earlier"},
		}},
	}
	strengths, weaknesses := report.KeywordClassifier{}.Classify(turns)

	byTheme := map[string]domain.ThemeEvidence{}
	for _, te := range strengths {
		byTheme[te.Theme] = te
	}
	quant, ok := byTheme["quantified impact"]
	require.True(t, ok)
	assert.Equal(t, []string{"3", "4"}, quant.Evidence)
	assert.Equal(t, "medium", quant.Severity)

	require.Len(t, weaknesses, 1)
	assert.Equal(t, "collaboration", weaknesses[0].Theme)
	assert.Equal(t, []string{"3", "4"}, weaknesses[0].Evidence)
}

func TestKeywordClassifierMatchesInflectedForms(t *testing.T) {
	t.Parallel()
	cases := []struct {
		line  string
		theme string
	}{
		{"Measured the KPIs after every release", "quantified impact"},
		{"Backed the claim with numbers", "quantified impact"},
		{"Clearly structured the walkthrough", "structured communication"},
		{"Took accountability for the rollback", "ownership"},
		{"Aligned stakeholders before the launch", "collaboration"},
		{"Ran a postmortem and applied the learnings", "learning from failure"},
		{"Nice shoes", "other observations"},
	}
	for _, tc := range cases {
		turns := []domain.Turn{{Label: "1", Dossier: &domain.Dossier{Strengths: []string{tc.line}}}}
		strengths, _ := report.KeywordClassifier{}.Classify(turns)
		require.Len(t, strengths, 1, "line %q", tc.line)
		assert.Equal(t, tc.theme, strengths[0].Theme, "line %q", tc.line)
	}
}

type cannedLLM struct {
	response string
	calls    int
}

func (c *cannedLLM) ChatJSON(_ domain.Context, _, _ string, _ float64, _ int) (string, error) {
	c.calls++
	return c.response, nil
}

func (c *cannedLLM) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func transcript() (domain.Session, []domain.Turn) {
	s := domain.Session{
		ID:      "sess-1",
		Context: domain.SessionContext{Company: "Acme", Role: "SRE"},
		Status:  domain.SessionFinished,
	}
	main := answerTurn("3", domain.FrameworkSTAR, map[string]int{"situation": 16, "task": 14, "action": 18, "result": 16})
	main.Dossier.Feedback = "Strong incident story with measurable results."
	main.Dossier.Strengths = []string{"Quantified impact with metrics"}
	main.Dossier.ModelAnswer = &domain.ModelAnswer{Text: "A model answer.", Framework: domain.FrameworkSTAR}

	followup := answerTurn("3-1", domain.FrameworkSTAR, map[string]int{"result": 12})
	followup.Question = "What was the root cause?"

	return s, []domain.Turn{main, followup}
}

func TestAssembleWithGeneratedSummary(t *testing.T) {
	t.Parallel()
	llm := &cannedLLM{response: `{"overall_summary": "A consistently strong performance."}`}
	a := report.NewAssembler(chain.NewExecutor(llm, "gpt-4", 0), report.DefaultPolicy, nil)
	s, turns := transcript()

	r := a.Assemble(context.Background(), s, turns)

	assert.Equal(t, "sess-1", r.SessionID)
	assert.Equal(t, "A consistently strong performance.", r.OverallSummary)
	assert.Empty(t, r.ValidationErrors)
	assert.NotZero(t, r.WeightedScore)
	assert.NotEmpty(t, r.Recommendation)

	// Follow-up turns score but do not get their own feedback card.
	require.Len(t, r.QuestionFeedback, 1)
	assert.Equal(t, "3", r.QuestionFeedback[0].Label)
	assert.Equal(t, "A model answer.", r.QuestionFeedback[0].ModelAnswer)
}

func TestAssembleFallsBackToDeterministicSummary(t *testing.T) {
	t.Parallel()
	llm := &cannedLLM{response: "not json"}
	a := report.NewAssembler(chain.NewExecutor(llm, "gpt-4", 0), report.DefaultPolicy, nil)
	s, turns := transcript()

	r := a.Assemble(context.Background(), s, turns)
	assert.Contains(t, r.OverallSummary, "Weighted interview score")
	assert.Contains(t, r.OverallSummary, "star")
}

func TestAssembleWithoutExecutor(t *testing.T) {
	t.Parallel()
	a := report.NewAssembler(nil, report.HiringPolicy{}, nil)
	s, turns := transcript()
	r := a.Assemble(context.Background(), s, turns)
	assert.NotEmpty(t, r.OverallSummary)
	assert.NotEmpty(t, r.Recommendation)
}

type badClassifier struct{}

func (badClassifier) Classify([]domain.Turn) ([]domain.ThemeEvidence, []domain.ThemeEvidence) {
	return []domain.ThemeEvidence{{Theme: "fabricated", Evidence: []string{"99"}}}, nil
}

func TestAssembleRecordsEvidenceValidationErrors(t *testing.T) {
	t.Parallel()
	a := report.NewAssembler(nil, report.DefaultPolicy, badClassifier{})
	s, turns := transcript()

	r := a.Assemble(context.Background(), s, turns)
	require.Len(t, r.ValidationErrors, 1)
	assert.Contains(t, r.ValidationErrors[0], `unknown turn "99"`)
	// Validation problems never block assembly.
	assert.NotEmpty(t, r.Recommendation)
}

func TestAssembleRecordsEnumValidationErrors(t *testing.T) {
	t.Parallel()
	a := report.NewAssembler(nil, report.DefaultPolicy, nil)
	s, turns := transcript()
	turns = append(turns, domain.Turn{
		Label:        "4",
		QuestionType: domain.QuestionSTAR,
		Dossier:      &domain.Dossier{Intent: "MONOLOGUE", Framework: "vibes"},
	})

	r := a.Assemble(context.Background(), s, turns)
	require.Len(t, r.ValidationErrors, 2)
	assert.Contains(t, r.ValidationErrors[0], `unrecognized intent "MONOLOGUE"`)
	assert.Contains(t, r.ValidationErrors[1], `unrecognized framework "vibes"`)
	// The report is still delivered.
	assert.NotEmpty(t, r.Recommendation)
	assert.NotEmpty(t, r.OverallSummary)
}
