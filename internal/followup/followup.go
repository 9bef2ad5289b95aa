// Package followup decides whether an answer warrants follow-up questions
// and produces them, preferring generation grounded in unmet expected points
// with a template pool as fallback.
package followup

import (
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// MaxPerAnswer caps how many follow-ups one answer can produce.
const MaxPerAnswer = 2

// maxTemplateLen bounds template-derived follow-ups.
const maxTemplateLen = 80

// similarity above which a generated follow-up is considered a re-ask.
const duplicateJaccard = 0.6

// Thresholds holds the minimum answer lengths (in runes) below which the
// soft question types get a drill-in follow-up.
type Thresholds struct {
	Icebreak int
	Intro    int
	Motive   int
}

// DefaultThresholds mirror the shipped soft-question policy.
var DefaultThresholds = Thresholds{Icebreak: 25, Intro: 40, Motive: 40}

// Result is the outcome of a follow-up decision.
type Result struct {
	Followups    []string
	FallbackUsed bool
}

// Input carries the answered turn.
type Input struct {
	Item    domain.PlanItem
	Answer  string
	Dossier domain.Dossier
	Context domain.SessionContext
}

// Generator decides and generates follow-ups. The random source is injected
// so template selection is reproducible in tests.
type Generator struct {
	ex         *chain.Executor
	thresholds Thresholds
	mu         sync.Mutex
	rng        *rand.Rand
}

// New constructs a Generator. ex may be nil, in which case substantive
// follow-ups always come from the template pool.
func New(ex *chain.Executor, thresholds Thresholds, rng *rand.Rand) *Generator {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1)) //nolint:gosec // template pool selection only
	}
	return &Generator{ex: ex, thresholds: thresholds, rng: rng}
}

// soft template pools, parameterized by company and role
var softPools = map[domain.QuestionType][]string{
	domain.QuestionIcebreaking: {
		"What has your day been like so far?",
		"How are you feeling about the conversation today?",
		"Could you share a bit more before we dive in?",
	},
	domain.QuestionSelfIntro: {
		"Which part of your background fits the {role} role best?",
		"What experience are you proudest of so far?",
		"Could you expand on your most recent position?",
	},
	domain.QuestionMotivation: {
		"What specifically draws you to {company}?",
		"Why is the {role} role the right next step for you?",
		"What do you hope to achieve at {company}?",
	},
}

// substantive fallback pool when generation fails or returns nothing
var substantivePool = []string{
	"What was the most difficult decision you made there, and why?",
	"What would you do differently if you faced that situation again?",
	"How did you measure whether that outcome was a success?",
	"Who else was involved, and what was your specific contribution?",
}

const evidenceFollowup = "You sound confident about that. Can you back it up with a concrete example or numbers?"

var assertionRe = regexp.MustCompile(`(?i)\b(definitely|absolutely|always|never|certainly|best|perfect(ly)?|expert|world[- ]class|without (a )?doubt|undoubtedly)\b`)
var evidenceRe = regexp.MustCompile(`(?i)([0-9]+(\.[0-9]+)?%?|\bfor example\b|\bfor instance\b|\bspecifically\b|\bmeasured\b|\bresulted\b|\bdata\b|\bmetric)`)

// HasUnsupportedAssertion reports whether the answer asserts confidence
// without offering concrete evidence.
func HasUnsupportedAssertion(answer string) bool {
	return assertionRe.MatchString(answer) && !evidenceRe.MatchString(answer)
}

var stageFollowup = chain.Stage{
	Name:        "followup",
	System:      "You are an interviewer generating probing follow-up questions. Return ONLY valid JSON.",
	Temperature: 0.6,
	MaxTokens:   500,
	Template: `Generate at most 2 follow-up questions that probe what the answer left uncovered. Target the unmet expected points first. Each question must be a single sentence ending in "?".

[Question]
{question}

[Expected points]
{expected_points}

[Answer]
{answer}

Output JSON:
{"followups": ["..."], "keywords": ["..."]}`,
}

// Generate decides whether follow-ups are needed for the answered item and
// produces at most MaxPerAnswer of them.
func (g *Generator) Generate(ctx domain.Context, in Input) Result {
	if in.Dossier.Intent != "" && in.Dossier.Intent != domain.IntentAnswer {
		// Non-answers get a recovery move from the flow controller instead.
		return Result{}
	}

	if pool, ok := softPools[in.Item.Type]; ok {
		if g.answerTooShort(in) {
			return Result{Followups: []string{g.fromPool(pool, in.Context)}}
		}
		return Result{}
	}

	var out []string
	if HasUnsupportedAssertion(in.Answer) {
		// Top priority: demand evidence before anything else.
		out = append(out, evidenceFollowup)
	}

	generated, fallback := g.generateSubstantive(ctx, in)
	out = append(out, generated...)

	out = dedupe(out, in.Item.Question)
	if len(out) > MaxPerAnswer {
		out = out[:MaxPerAnswer]
	}
	return Result{Followups: out, FallbackUsed: fallback}
}

func (g *Generator) answerTooShort(in Input) bool {
	n := len([]rune(strings.TrimSpace(in.Answer)))
	switch in.Item.Type {
	case domain.QuestionIcebreaking:
		return n < g.thresholds.Icebreak
	case domain.QuestionSelfIntro:
		return n < g.thresholds.Intro
	case domain.QuestionMotivation:
		return n < g.thresholds.Motive
	}
	return false
}

func (g *Generator) generateSubstantive(ctx domain.Context, in Input) ([]string, bool) {
	unmet := unmetPoints(in)
	if len(unmet) == 0 && !needsDepth(in.Dossier) {
		return nil, false
	}

	if g.ex != nil {
		res, err := g.ex.Run(ctx, stageFollowup, map[string]string{
			"question":        in.Item.Question,
			"expected_points": strings.Join(unmet, "; "),
			"answer":          in.Answer,
		})
		if err == nil && !res.Failed() {
			if qs := parseFollowups(res.Data); len(qs) > 0 {
				return qs, false
			}
		}
		if err != nil {
			slog.Warn("followup generation contract error", slog.Any("error", err))
		}
	}

	observability.FollowupFallbackTotal.Inc()
	return []string{g.fromPool(substantivePool, in.Context)}, true
}

// unmetPoints returns expected points with no lexical overlap in the answer.
func unmetPoints(in Input) []string {
	var unmet []string
	for _, p := range in.Item.ExpectedPoints {
		if textx.TokenJaccard(p, in.Answer) == 0 {
			unmet = append(unmet, p)
		}
	}
	return unmet
}

// needsDepth reports whether scoring shows weak components worth probing.
func needsDepth(d domain.Dossier) bool {
	for _, v := range d.ScoresMain {
		if v < 10 {
			return true
		}
	}
	return false
}

func parseFollowups(data map[string]any) []string {
	raw, _ := data["followups"].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, _ := item.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, textx.EnsureQuestionMark(s))
		if len(out) == MaxPerAnswer {
			break
		}
	}
	return out
}

func (g *Generator) fromPool(pool []string, sc domain.SessionContext) string {
	g.mu.Lock()
	idx := g.rng.Intn(len(pool))
	g.mu.Unlock()
	q := pool[idx]
	q = strings.ReplaceAll(q, "{company}", orDefault(sc.Company, "our company"))
	q = strings.ReplaceAll(q, "{role}", orDefault(sc.Role, "this role"))
	q = textx.EnsureQuestionMark(strings.TrimSpace(q))
	if len([]rune(q)) > maxTemplateLen {
		q = textx.EnsureQuestionMark(textx.TruncateRunes(q, maxTemplateLen-4))
	}
	return q
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// dedupe drops follow-ups that are near-duplicates of the original question
// or of an earlier follow-up in the list.
func dedupe(qs []string, original string) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if textx.TokenJaccard(q, original) > duplicateJaccard {
			continue
		}
		dup := false
		for _, prev := range out {
			if textx.TokenJaccard(q, prev) > duplicateJaccard {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, q)
		}
	}
	return out
}
