// Package planner builds the interview plan at session start: an LLM design
// pass for the core and wrapup phases with a deterministic fallback, plus the
// fixed intro phase. Plans are read-only once the session exists.
package planner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

var designStage = chain.Stage{
	Name:        "plan_design",
	System:      "You design structured interview plans. Return ONLY valid JSON.",
	Temperature: 0.3,
	MaxTokens:   2000,
	Template: `Design the core and wrapup questions of a structured interview.

[Company] {company}
[Role] {role}
[Difficulty] {difficulty}
[Interviewer persona]
{persona}

[Job description]
{job_description}

[Resume summary]
{resume_summary}

Rules:
- {core_count} core items, one wrapup item.
- question_type per item: star|competency|case|system|hard.
- Each core item lists 2-4 expected_points and a 5-band rubric with scores 50, 40, 30, 20, 10.

Output JSON:
{"core": [{"question_type": "star", "question": "...", "expected_points": ["..."], "rubric": [{"grade": "A", "score": 50, "descriptor": "..."}]}], "wrapup": [{"question_type": "wrapup", "question": "..."}]}`,
}

// Planner builds plans. ex may be nil; the deterministic fallback is used then.
type Planner struct {
	ex       *chain.Executor
	personas map[string]Persona
	coreLen  int
}

// New constructs a Planner producing coreLen core questions (default 4).
func New(ex *chain.Executor, personas map[string]Persona, coreLen int) *Planner {
	if coreLen <= 0 {
		coreLen = 4
	}
	if personas == nil {
		personas = DefaultPersonas()
	}
	return &Planner{ex: ex, personas: personas, coreLen: coreLen}
}

// Build produces a complete plan. Designer failures degrade to the static
// fallback core; the intro phase is always the same three items.
func (p *Planner) Build(ctx domain.Context, sc domain.SessionContext, difficulty, mode string) domain.Plan {
	persona, ok := p.personas[mode]
	if !ok {
		persona = p.personas["neutral"]
	}

	core, wrapup := p.designedPhases(ctx, sc, difficulty, persona)
	if len(core) == 0 {
		core = fallbackCore(sc)
	}
	if len(wrapup) == 0 {
		wrapup = []domain.PlanItem{{
			ID:       newItemID(),
			Type:     domain.QuestionWrapup,
			Question: "That is all from my side. Do you have any questions for us?",
		}}
	}

	return domain.Plan{Phases: []domain.Phase{
		{Name: domain.PhaseIntro, Items: introItems(sc)},
		{Name: domain.PhaseCore, Items: core},
		{Name: domain.PhaseWrapup, Items: wrapup},
	}}
}

func (p *Planner) designedPhases(ctx domain.Context, sc domain.SessionContext, difficulty string, persona Persona) (core, wrapup []domain.PlanItem) {
	if p.ex == nil {
		return nil, nil
	}
	res, err := p.ex.Run(ctx, designStage, map[string]string{
		"company":         sc.Company,
		"role":            sc.Role,
		"difficulty":      difficulty,
		"persona":         persona.Description,
		"job_description": sc.JobDescription,
		"resume_summary":  sc.ResumeSummary,
		"core_count":      fmt.Sprintf("%d", p.coreLen),
	})
	if err != nil || res.Failed() {
		slog.Warn("plan design failed, using fallback plan",
			slog.String("reason", designFailReason(res, err)))
		return nil, nil
	}
	core = parseItems(res.Data["core"], coreTypes)
	wrapup = parseItems(res.Data["wrapup"], map[domain.QuestionType]bool{domain.QuestionWrapup: true})
	if len(core) > p.coreLen {
		core = core[:p.coreLen]
	}
	return core, wrapup
}

var coreTypes = map[domain.QuestionType]bool{
	domain.QuestionSTAR:       true,
	domain.QuestionCompetency: true,
	domain.QuestionCase:       true,
	domain.QuestionSystem:     true,
	domain.QuestionHard:       true,
}

func parseItems(v any, allowed map[domain.QuestionType]bool) []domain.PlanItem {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	items := make([]domain.PlanItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		qt := domain.QuestionType(strings.ToLower(strings.TrimSpace(str(m["question_type"]))))
		question := strings.TrimSpace(str(m["question"]))
		if question == "" || !allowed[qt] {
			continue
		}
		item := domain.PlanItem{
			ID:       newItemID(),
			Type:     qt,
			Question: question,
		}
		if pts, ok := m["expected_points"].([]any); ok {
			for _, pt := range pts {
				if s := strings.TrimSpace(str(pt)); s != "" {
					item.ExpectedPoints = append(item.ExpectedPoints, s)
				}
			}
		}
		if bands, ok := m["rubric"].([]any); ok {
			for _, b := range bands {
				bm, ok := b.(map[string]any)
				if !ok {
					continue
				}
				item.Rubric = append(item.Rubric, domain.RubricBand{
					Grade:      str(bm["grade"]),
					Score:      num(bm["score"]),
					Descriptor: str(bm["descriptor"]),
				})
			}
		}
		items = append(items, item)
	}
	return items
}

func introItems(sc domain.SessionContext) []domain.PlanItem {
	company := sc.Company
	if company == "" {
		company = "our company"
	}
	role := sc.Role
	if role == "" {
		role = "this role"
	}
	return []domain.PlanItem{
		{ID: newItemID(), Type: domain.QuestionIcebreaking, Question: "Before we begin, how has your day been going?"},
		{ID: newItemID(), Type: domain.QuestionSelfIntro, Question: "Please introduce yourself briefly."},
		{ID: newItemID(), Type: domain.QuestionMotivation, Question: fmt.Sprintf("Why do you want to join %s as a %s?", company, role)},
	}
}

func fallbackCore(sc domain.SessionContext) []domain.PlanItem {
	role := sc.Role
	if role == "" {
		role = "this role"
	}
	rubric := defaultRubric()
	return []domain.PlanItem{
		{
			ID: newItemID(), Type: domain.QuestionSTAR,
			Question:       "Tell me about the most challenging project you have delivered.",
			ExpectedPoints: []string{"concrete situation", "personal actions", "measured outcome"},
			Rubric:         rubric,
		},
		{
			ID: newItemID(), Type: domain.QuestionCompetency,
			Question:       fmt.Sprintf("Describe a time you had to collaborate under disagreement as a %s.", role),
			ExpectedPoints: []string{"behavior under conflict", "impact on the team"},
			Rubric:         rubric,
		},
		{
			ID: newItemID(), Type: domain.QuestionSystem,
			Question:       "Walk me through how you would design a rate limiter for a public API.",
			ExpectedPoints: []string{"requirements", "trade-offs", "failure handling"},
			Rubric:         rubric,
		},
		{
			ID: newItemID(), Type: domain.QuestionCase,
			Question:       "Our error budget was exhausted twice last quarter. How would you approach the problem?",
			ExpectedPoints: []string{"problem framing", "structured analysis", "recommendation"},
			Rubric:         rubric,
		},
	}
}

func defaultRubric() []domain.RubricBand {
	return []domain.RubricBand{
		{Grade: "A", Score: 50, Descriptor: "specific, quantified, owns the outcome"},
		{Grade: "B", Score: 40, Descriptor: "specific but outcome unmeasured"},
		{Grade: "C", Score: 30, Descriptor: "plausible but generic"},
		{Grade: "D", Score: 20, Descriptor: "vague, no personal contribution"},
		{Grade: "E", Score: 10, Descriptor: "off-topic or no substance"},
	}
}

func newItemID() string { return uuid.New().String() }

func designFailReason(res chain.StageResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Err
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}
