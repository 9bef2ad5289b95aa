// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/evaluation"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/flow"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/followup"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/planner"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/report"
)

// SessionService orchestrates the interview lifecycle: planning, answer
// evaluation, follow-up scheduling, cursor advancement, and report assembly.
type SessionService struct {
	Sessions  domain.SessionRepository
	Turns     domain.TurnRepository
	Reports   domain.ReportRepository
	Cache     domain.ReportCache
	Events    domain.EventPublisher
	Planner   *planner.Planner
	Evaluator *evaluation.Evaluator
	Followups *followup.Generator
	Flow      *flow.Controller
	Assembler *report.Assembler

	locks sync.Map // session ID -> *sync.Mutex
}

// NewSessionService constructs a SessionService with its dependencies.
func NewSessionService(
	sessions domain.SessionRepository,
	turns domain.TurnRepository,
	reports domain.ReportRepository,
	cache domain.ReportCache,
	events domain.EventPublisher,
	pl *planner.Planner,
	ev *evaluation.Evaluator,
	fg *followup.Generator,
	fc *flow.Controller,
	as *report.Assembler,
) *SessionService {
	return &SessionService{
		Sessions: sessions, Turns: turns, Reports: reports, Cache: cache,
		Events: events, Planner: pl, Evaluator: ev, Followups: fg, Flow: fc, Assembler: as,
	}
}

// lock returns the per-session mutex, creating it on first use. All writes to
// a session's state and transcript go through this lock.
func (s *SessionService) lock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// StartInput is the material a new session is planned from.
type StartInput struct {
	Language        string
	Difficulty      string
	InterviewerMode string
	Context         domain.SessionContext
}

// NextQuestion is what the interviewer says next, as seen by transports.
type NextQuestion struct {
	Label    string `json:"question_id,omitempty"`
	Question string `json:"question,omitempty"`
	Followup bool   `json:"is_followup,omitempty"`
	Done     bool   `json:"done"`
}

// AnswerOutcome is the result of submitting one answer.
type AnswerOutcome struct {
	AnsweredLabel   string
	Dossier         domain.Dossier
	FollowupsQueued int
	// Recovery carries the scripted interviewer line for a non-answer; the
	// question in Next is then the same one, re-asked.
	Recovery string
	Next     NextQuestion
}

// StartSession plans and persists a new interview, returning the session and
// its first question.
func (s *SessionService) StartSession(ctx domain.Context, in StartInput) (domain.Session, NextQuestion, error) {
	if strings.TrimSpace(in.Context.Role) == "" {
		return domain.Session{}, NextQuestion{}, fmt.Errorf("%w: role required", domain.ErrInvalidArgument)
	}

	plan := s.Planner.Build(ctx, in.Context, in.Difficulty, in.InterviewerMode)
	sess := domain.Session{
		ID:              uuid.New().String(),
		Language:        in.Language,
		Difficulty:      in.Difficulty,
		InterviewerMode: in.InterviewerMode,
		Context:         in.Context,
		Plan:            plan,
		Status:          domain.SessionActive,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return domain.Session{}, NextQuestion{}, err
	}
	observability.SessionsStartedTotal.Inc()

	first, err := s.Flow.Current(plan, sess.State)
	if err != nil {
		return domain.Session{}, NextQuestion{}, err
	}
	return sess, toNextQuestion(first), nil
}

// Current returns the question the candidate should answer now.
func (s *SessionService) Current(ctx domain.Context, sessionID string) (NextQuestion, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return NextQuestion{}, err
	}
	if sess.Status == domain.SessionFinished {
		return NextQuestion{}, fmt.Errorf("op=session.current: %w", domain.ErrSessionFinished)
	}
	next, err := s.Flow.Current(sess.Plan, sess.State)
	if err != nil {
		return NextQuestion{}, err
	}
	nq := toNextQuestion(next)
	if !next.Done {
		nq.Label = flow.CurrentLabel(sess.Plan, sess.State)
		if sess.State.CurrentFollowup != "" {
			nq.Question = sess.State.CurrentFollowup
			nq.Followup = true
		}
	}
	return nq, nil
}

// SubmitAnswer evaluates one answer, records the turn, schedules follow-ups,
// and advances the interview cursor. Writers are serialized per session.
func (s *SessionService) SubmitAnswer(ctx domain.Context, sessionID, answer string) (AnswerOutcome, error) {
	if strings.TrimSpace(answer) == "" {
		return AnswerOutcome{}, fmt.Errorf("%w: answer required", domain.ErrInvalidArgument)
	}

	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if sess.Status == domain.SessionFinished || sess.State.Done {
		return AnswerOutcome{}, fmt.Errorf("op=session.submit_answer: %w", domain.ErrSessionFinished)
	}

	item, ok := sess.Plan.ItemAt(sess.State.PhaseIdx, sess.State.QuestionIdx)
	if !ok {
		return AnswerOutcome{}, fmt.Errorf("op=session.submit_answer: cursor outside plan: %w", domain.ErrInternal)
	}
	label := flow.CurrentLabel(sess.Plan, sess.State)
	question := item.Question
	if sess.State.FollowupIdx > 0 && sess.State.CurrentFollowup != "" {
		// The plan item stays the evaluation anchor; the candidate heard the
		// follow-up text.
		question = sess.State.CurrentFollowup
	}

	dossier, err := s.Evaluator.Evaluate(ctx, evaluation.Input{
		Item:     item,
		Question: question,
		Answer:   answer,
		Context:  sess.Context,
	})
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("op=session.submit_answer: %w", err)
	}

	prior, err := s.Turns.ListBySession(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	turn := domain.Turn{
		SessionID:    sessionID,
		Index:        len(prior),
		Label:        label,
		QuestionType: item.Type,
		Question:     question,
		Answer:       answer,
		Dossier:      &dossier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Turns.Append(ctx, turn); err != nil {
		return AnswerOutcome{}, err
	}
	s.publishTurn(ctx, sessionID, label, dossier)

	out := AnswerOutcome{AnsweredLabel: label, Dossier: dossier}
	state := sess.State

	if rec, isRecovery := flow.RecoveryFor(dossier.Intent, question); isRecovery {
		out.Recovery = rec.Prompt
		if !rec.AdvanceCursor {
			// Same question stays current; nothing to persist.
			out.Next = NextQuestion{Label: label, Question: question, Followup: state.FollowupIdx > 0}
			return out, nil
		}
	} else {
		fres := s.Followups.Generate(ctx, followup.Input{
			Item: item, Answer: answer, Dossier: dossier, Context: sess.Context,
		})
		out.FollowupsQueued = s.Flow.QueueFollowups(&state, fres.Followups)
	}

	next, state := s.Flow.Advance(sess.Plan, state)
	if err := s.Sessions.UpdateState(ctx, sessionID, state); err != nil {
		return AnswerOutcome{}, err
	}
	out.Next = toNextQuestion(next)
	if !next.Done && !next.Followup {
		out.Next.Question = withTransition(sess.Plan, sess.State, state, next.Question)
	}
	return out, nil
}

// FinishSession assembles and persists the final report. Finishing an already
// finished session returns the stored report unchanged.
func (s *SessionService) FinishSession(ctx domain.Context, sessionID string) (domain.Report, error) {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Report{}, err
	}
	if sess.Status == domain.SessionFinished {
		return s.getReport(ctx, sessionID)
	}

	turns, err := s.Turns.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.Report{}, err
	}
	r := s.Assembler.Assemble(ctx, sess, turns)
	if err := s.Reports.Upsert(ctx, r); err != nil {
		return domain.Report{}, err
	}
	if err := s.Sessions.Finish(ctx, sessionID, time.Now().UTC()); err != nil {
		return domain.Report{}, err
	}
	observability.SessionsFinishedTotal.Inc()

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, r); err != nil {
			slog.Warn("report cache write failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishSessionFinished(ctx, sessionID, r.Recommendation); err != nil {
			slog.Warn("session finished event failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	return r, nil
}

// GetReport returns the report of a finished session, from cache when warm.
func (s *SessionService) GetReport(ctx domain.Context, sessionID string) (domain.Report, error) {
	return s.getReport(ctx, sessionID)
}

func (s *SessionService) getReport(ctx domain.Context, sessionID string) (domain.Report, error) {
	if s.Cache != nil {
		if r, ok, err := s.Cache.Get(ctx, sessionID); err == nil && ok {
			return r, nil
		}
	}
	r, err := s.Reports.GetBySession(ctx, sessionID)
	if err != nil {
		return domain.Report{}, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, r); err != nil {
			slog.Warn("report cache write failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	return r, nil
}

func (s *SessionService) publishTurn(ctx domain.Context, sessionID, label string, d domain.Dossier) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishTurnEvaluated(ctx, sessionID, label, d); err != nil {
		slog.Warn("turn evaluated event failed",
			slog.String("session_id", sessionID), slog.String("label", label), slog.Any("error", err))
	}
}

var phaseTransitions = map[domain.PhaseName]string{
	domain.PhaseCore:   "Thanks, that gives me a good picture. Let's move to the main questions. ",
	domain.PhaseWrapup: "We are almost done. ",
}

// withTransition prefixes the next main question with a short phrase when the
// cursor just crossed into a new phase.
func withTransition(plan domain.Plan, before, after domain.FlowState, question string) string {
	if after.PhaseIdx == before.PhaseIdx || after.PhaseIdx >= len(plan.Phases) {
		return question
	}
	if phrase, ok := phaseTransitions[plan.Phases[after.PhaseIdx].Name]; ok {
		return phrase + question
	}
	return question
}

func toNextQuestion(n flow.Next) NextQuestion {
	return NextQuestion{Label: n.Label, Question: n.Question, Followup: n.Followup, Done: n.Done}
}
