package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func TestNormalizeScoreKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"situation", "situation", true},
		{"Situation", "situation", true},
		{"s", "situation", true},
		{"T", "task", true},
		{"a", "action", true},
		{"r", "result", true},
		{"b", "behavior", true},
		{"behaviour", "behavior", true},
		{"stucture", "structure", true},
		{"trade-offs", "tradeoffs", true},
		{"trade_offs", "tradeoffs", true},
		{" metrics ", "metrics", true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := domain.NormalizeScoreKey(tc.in)
		assert.Equal(t, tc.ok, ok, "key %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "key %q", tc.in)
		}
	}
}

func TestNormalizeFramework(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want domain.Framework
		ok   bool
	}{
		{"STAR", domain.FrameworkSTAR, true},
		{"competency-based", domain.FrameworkCompetency, true},
		{"base", domain.FrameworkCompetency, true},
		{"MECE", domain.FrameworkCase, true},
		{"system design", domain.FrameworkSystemDesign, true},
		{"systemdesign", domain.FrameworkSystemDesign, true},
		{"unknown", "", false},
	}
	for _, tc := range cases {
		got, ok := domain.NormalizeFramework(tc.in)
		assert.Equal(t, tc.ok, ok, "framework %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}

func TestFrameworkBaseKeysExhaustive(t *testing.T) {
	t.Parallel()
	// Every declared base key must normalize to itself.
	for fw, keys := range domain.FrameworkBaseKeys {
		for _, k := range keys {
			got, ok := domain.NormalizeScoreKey(k)
			require.True(t, ok, "framework %s key %s", fw, k)
			assert.Equal(t, k, got)
		}
	}
	assert.Equal(t, 80, domain.FrameworkMax(domain.FrameworkSTAR))
	assert.Equal(t, 60, domain.FrameworkMax(domain.FrameworkCompetency))
	assert.Equal(t, 80, domain.FrameworkMax(domain.FrameworkCase))
	assert.Equal(t, 80, domain.FrameworkMax(domain.FrameworkSystemDesign))
}

func TestClamps(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, domain.ClampMainScore(-3))
	assert.Equal(t, 20, domain.ClampMainScore(99))
	assert.Equal(t, 17, domain.ClampMainScore(17))
	assert.Equal(t, 0, domain.ClampExtScore(-1))
	assert.Equal(t, 10, domain.ClampExtScore(11))
	assert.Equal(t, 7, domain.ClampExtScore(7))
}

func TestPlanItemAt(t *testing.T) {
	t.Parallel()
	p := domain.Plan{Phases: []domain.Phase{
		{Name: domain.PhaseIntro, Items: []domain.PlanItem{{ID: "q1"}}},
		{Name: domain.PhaseCore, Items: []domain.PlanItem{{ID: "q2"}, {ID: "q3"}}},
	}}
	it, ok := p.ItemAt(1, 1)
	require.True(t, ok)
	assert.Equal(t, "q3", it.ID)
	_, ok = p.ItemAt(1, 2)
	assert.False(t, ok)
	_, ok = p.ItemAt(2, 0)
	assert.False(t, ok)
	_, ok = p.ItemAt(-1, 0)
	assert.False(t, ok)
}

func TestTurnIsFollowup(t *testing.T) {
	t.Parallel()
	assert.False(t, domain.Turn{Label: "2"}.IsFollowup())
	assert.True(t, domain.Turn{Label: "2-1"}.IsFollowup())
}

func TestQuestionTypeScored(t *testing.T) {
	t.Parallel()
	for _, qt := range []domain.QuestionType{
		domain.QuestionSelfIntro, domain.QuestionMotivation,
		domain.QuestionSTAR, domain.QuestionCompetency,
		domain.QuestionCase, domain.QuestionSystem, domain.QuestionHard,
	} {
		assert.True(t, qt.Scored(), "type %s", qt)
	}
	assert.False(t, domain.QuestionIcebreaking.Scored())
	assert.False(t, domain.QuestionWrapup.Scored())
	assert.False(t, domain.QuestionType("chitchat").Scored())
	assert.False(t, domain.QuestionType("").Scored())
}

func TestEnumValidity(t *testing.T) {
	t.Parallel()
	assert.True(t, domain.IntentAnswer.Valid())
	assert.True(t, domain.IntentCannotAnswer.Valid())
	assert.False(t, domain.Intent("MONOLOGUE").Valid())
	assert.False(t, domain.Intent("").Valid())

	assert.True(t, domain.FrameworkSTAR.Valid())
	assert.True(t, domain.FrameworkSystemDesign.Valid())
	assert.False(t, domain.Framework("vibes").Valid())
	assert.False(t, domain.Framework("").Valid())
}
