// Package domain holds the core entities and ports of the interview engine.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrSessionFinished   = errors.New("session finished")
	ErrMissingVariable   = errors.New("missing template variable")
	ErrUnrepairableJSON  = errors.New("unrepairable json")
	ErrInternal          = errors.New("internal error")
)

// Intent classifies what a candidate utterance is doing.
type Intent string

const (
	IntentAnswer               Intent = "ANSWER"
	IntentIrrelevant           Intent = "IRRELEVANT"
	IntentQuestion             Intent = "QUESTION"
	IntentClarificationRequest Intent = "CLARIFICATION_REQUEST"
	IntentCannotAnswer         Intent = "CANNOT_ANSWER"
)

// Valid reports whether the intent is a recognized value.
func (i Intent) Valid() bool {
	switch i {
	case IntentAnswer, IntentIrrelevant, IntentQuestion, IntentClarificationRequest, IntentCannotAnswer:
		return true
	}
	return false
}

// Framework names the structural rubric applied to an answer.
type Framework string

const (
	FrameworkSTAR         Framework = "star"
	FrameworkCompetency   Framework = "competency"
	FrameworkCase         Framework = "case"
	FrameworkSystemDesign Framework = "systemdesign"
)

// Valid reports whether the framework is a recognized value.
func (f Framework) Valid() bool {
	switch f {
	case FrameworkSTAR, FrameworkCompetency, FrameworkCase, FrameworkSystemDesign:
		return true
	}
	return false
}

// Extension is an auxiliary scoring signal layered on top of a framework.
type Extension string

const (
	ExtChallenge Extension = "challenge"
	ExtLearning  Extension = "learning"
	ExtMetrics   Extension = "metrics"
)

// QuestionType categorizes plan items.
type QuestionType string

const (
	QuestionIcebreaking QuestionType = "icebreaking"
	QuestionSelfIntro   QuestionType = "self_intro"
	QuestionMotivation  QuestionType = "motivation"
	QuestionSTAR        QuestionType = "star"
	QuestionCompetency  QuestionType = "competency"
	QuestionCase        QuestionType = "case"
	QuestionSystem      QuestionType = "system"
	QuestionHard        QuestionType = "hard"
	QuestionWrapup      QuestionType = "wrapup"
)

// PhaseName identifies an interview phase.
type PhaseName string

const (
	PhaseIntro  PhaseName = "intro"
	PhaseCore   PhaseName = "core"
	PhaseWrapup PhaseName = "wrapup"
)

// HiringDecision is the final recommendation tier.
type HiringDecision string

const (
	DecisionStrongHire HiringDecision = "strong_hire"
	DecisionHire       HiringDecision = "hire"
	DecisionLeanHire   HiringDecision = "lean_hire"
	DecisionNoHire     HiringDecision = "no_hire"
)

// SessionStatus tracks the session lifecycle.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionFinished SessionStatus = "finished"
)

// RubricBand is one scoring band of a plan item rubric.
type RubricBand struct {
	Grade      string `json:"grade"`
	Score      int    `json:"score"`
	Descriptor string `json:"descriptor"`
}

// PlanItem is a single planned main question.
type PlanItem struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"question_type"`
	Question       string       `json:"question"`
	ExpectedPoints []string     `json:"expected_points,omitempty"`
	Rubric         []RubricBand `json:"rubric,omitempty"`
}

// Phase groups plan items under an interview phase.
type Phase struct {
	Name  PhaseName  `json:"name"`
	Items []PlanItem `json:"items"`
}

// Plan is the full interview plan. It is read-only after session creation.
type Plan struct {
	Phases []Phase `json:"phases"`
}

// ItemAt returns the plan item at the given cursor, reporting whether it exists.
func (p Plan) ItemAt(phaseIdx, questionIdx int) (PlanItem, bool) {
	if phaseIdx < 0 || phaseIdx >= len(p.Phases) {
		return PlanItem{}, false
	}
	items := p.Phases[phaseIdx].Items
	if questionIdx < 0 || questionIdx >= len(items) {
		return PlanItem{}, false
	}
	return items[questionIdx], true
}

// FlowState is the interview cursor. A single writer mutates it per session.
type FlowState struct {
	PhaseIdx         int      `json:"phase_idx"`
	QuestionIdx      int      `json:"question_idx"`
	FollowupIdx      int      `json:"followup_idx"`
	PendingFollowups []string `json:"pending_followups"`
	// CurrentFollowup is the follow-up text the candidate is answering when
	// FollowupIdx > 0; follow-ups are not part of the plan.
	CurrentFollowup string `json:"current_followup,omitempty"`
	Done            bool   `json:"done"`
}

// SessionContext carries the role/company material the prompts are grounded in.
type SessionContext struct {
	Company        string   `json:"company"`
	Role           string   `json:"role"`
	JobDescription string   `json:"job_description,omitempty"`
	ResumeSummary  string   `json:"resume_summary,omitempty"`
	NCSTitles      []string `json:"ncs_titles,omitempty"`
}

// Session is one interview run.
type Session struct {
	ID              string
	Language        string
	Difficulty      string
	InterviewerMode string
	Context         SessionContext
	Plan            Plan
	State           FlowState
	Status          SessionStatus
	CreatedAt       time.Time
	FinishedAt      *time.Time
}

// CalibrationEntry explains one component score against the rubric.
type CalibrationEntry struct {
	Key       string `json:"key"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// ModelAnswer is the exemplar produced for a question.
type ModelAnswer struct {
	Text            string    `json:"text"`
	Framework       Framework `json:"framework"`
	SelectionReason string    `json:"selection_reason"`
}

// BiasIssue is one flagged span from the bias filter.
type BiasIssue struct {
	Span         string `json:"span"`
	Category     string `json:"category"`
	Reason       string `json:"reason"`
	SuggestedFix string `json:"suggested_fix"`
	Severity     string `json:"severity"`
}

// Dossier is the full per-turn evaluation artifact.
type Dossier struct {
	Intent       Intent            `json:"intent"`
	Framework    Framework         `json:"framework,omitempty"`
	Extensions   []Extension       `json:"extensions,omitempty"`
	Extracted    map[string]string `json:"extracted,omitempty"`
	ScoresMain   map[string]int    `json:"scores_main,omitempty"`
	ScoresExt    map[Extension]int `json:"scores_ext,omitempty"`
	ScoringReason string           `json:"scoring_reason,omitempty"`
	Calibration  []CalibrationEntry `json:"calibration,omitempty"`
	Strengths    []string          `json:"strengths,omitempty"`
	Improvements []string          `json:"improvements,omitempty"`
	Feedback     string            `json:"feedback,omitempty"`
	ModelAnswer  *ModelAnswer      `json:"model_answer,omitempty"`
	BiasIssues   []BiasIssue       `json:"bias_issues,omitempty"`
	// StageErrors records evaluator stages that failed; keys are stage names.
	StageErrors map[string]string `json:"stage_errors,omitempty"`
}

// Turn is one exchange in the transcript.
type Turn struct {
	SessionID string
	Index     int
	Label     string
	// QuestionType is the plan item type the turn answered; follow-up turns
	// carry their main question's type.
	QuestionType QuestionType
	Question     string
	Answer       string
	Dossier      *Dossier
	CreatedAt    time.Time
}

// IsFollowup reports whether the turn label denotes a follow-up ("N-n").
func (t Turn) IsFollowup() bool {
	for i := 0; i < len(t.Label); i++ {
		if t.Label[i] == '-' {
			return true
		}
	}
	return false
}

// ScoreAggregation holds normalized 0-100 averages keyed by framework and extension.
type ScoreAggregation struct {
	MainAvg map[Framework]float64  `json:"main_avg"`
	ExtAvg  map[Extension]float64  `json:"ext_avg"`
}

// ThemeEvidence links a report theme to the turn labels supporting it.
type ThemeEvidence struct {
	Theme    string   `json:"theme"`
	Severity string   `json:"severity,omitempty"`
	Evidence []string `json:"evidence"`
}

// QuestionFeedback is one per-question card in the final report.
type QuestionFeedback struct {
	Label       string         `json:"question_id"`
	Question    string         `json:"question"`
	Framework   Framework      `json:"applied_framework,omitempty"`
	ScoresMain  map[string]int `json:"scores_main,omitempty"`
	Feedback    string         `json:"feedback,omitempty"`
	ModelAnswer string         `json:"model_answer,omitempty"`
}

// Report is the assembled final report for a finished session.
type Report struct {
	SessionID        string             `json:"session_id"`
	OverallSummary   string             `json:"overall_summary"`
	StrengthsMatrix  []ThemeEvidence    `json:"strengths_matrix"`
	WeaknessesMatrix []ThemeEvidence    `json:"weaknesses_matrix"`
	Aggregation      ScoreAggregation   `json:"score_aggregation"`
	WeightedScore    float64            `json:"weighted_score"`
	Recommendation   HiringDecision     `json:"hiring_recommendation"`
	QuestionFeedback []QuestionFeedback `json:"question_by_question_feedback"`
	ValidationErrors []string           `json:"validation_errors,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Repositories (ports)

type SessionRepository interface {
	Create(ctx Context, s Session) error
	Get(ctx Context, id string) (Session, error)
	UpdateState(ctx Context, id string, state FlowState) error
	Finish(ctx Context, id string, at time.Time) error
}

type TurnRepository interface {
	Append(ctx Context, t Turn) error
	ListBySession(ctx Context, sessionID string) ([]Turn, error)
}

type ReportRepository interface {
	Upsert(ctx Context, r Report) error
	GetBySession(ctx Context, sessionID string) (Report, error)
}

// ReportCache caches assembled reports for finished sessions.
type ReportCache interface {
	Get(ctx Context, sessionID string) (Report, bool, error)
	Set(ctx Context, r Report) error
}

// LLMClient (port)

type LLMClient interface {
	// ChatJSON returns the raw model output for a system/user prompt pair.
	// Callers are responsible for parsing and repairing the response.
	ChatJSON(ctx Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
	// Embed returns embedding vectors for texts.
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// ContextRetriever looks up grounding snippets for a query (competency
// descriptions, NCS titles). Implementations may be backed by a vector store.
type ContextRetriever interface {
	Lookup(ctx Context, query string, topK int) ([]string, error)
}

// EventPublisher emits domain events for downstream consumers.
type EventPublisher interface {
	PublishTurnEvaluated(ctx Context, sessionID, label string, d Dossier) error
	PublishSessionFinished(ctx Context, sessionID string, rec HiringDecision) error
}

// Context is an alias to allow decoupling from std context in domain.
// Adapters and usecases pass context.Context through.
type Context = context.Context
