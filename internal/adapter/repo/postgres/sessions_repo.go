package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// SessionRepo persists interview sessions.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// Create inserts a new session with its full plan.
func (r *SessionRepo) Create(ctx domain.Context, s domain.Session) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Create")
	defer span.End()

	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("op=session.create: marshal context: %w", err)
	}
	planJSON, err := json.Marshal(s.Plan)
	if err != nil {
		return fmt.Errorf("op=session.create: marshal plan: %w", err)
	}
	stateJSON, err := json.Marshal(s.State)
	if err != nil {
		return fmt.Errorf("op=session.create: marshal state: %w", err)
	}

	q := `INSERT INTO sessions (id, language, difficulty, interviewer_mode, context, plan, state, status, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := r.Pool.Exec(ctx, q, s.ID, s.Language, s.Difficulty, s.InterviewerMode,
		contextJSON, planJSON, stateJSON, s.Status, s.CreatedAt); err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	return nil
}

// Get loads a session by id.
func (r *SessionRepo) Get(ctx domain.Context, id string) (domain.Session, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Get")
	defer span.End()

	q := `SELECT id, language, difficulty, interviewer_mode, context, plan, state, status, created_at, finished_at
	      FROM sessions WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)

	var s domain.Session
	var contextJSON, planJSON, stateJSON []byte
	if err := row.Scan(&s.ID, &s.Language, &s.Difficulty, &s.InterviewerMode,
		&contextJSON, &planJSON, &stateJSON, &s.Status, &s.CreatedAt, &s.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("op=session.get: %w", domain.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("op=session.get: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
		return domain.Session{}, fmt.Errorf("op=session.get: unmarshal context: %w", err)
	}
	if err := json.Unmarshal(planJSON, &s.Plan); err != nil {
		return domain.Session{}, fmt.Errorf("op=session.get: unmarshal plan: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &s.State); err != nil {
		return domain.Session{}, fmt.Errorf("op=session.get: unmarshal state: %w", err)
	}
	return s, nil
}

// UpdateState persists the interview cursor.
func (r *SessionRepo) UpdateState(ctx domain.Context, id string, state domain.FlowState) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.UpdateState")
	defer span.End()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("op=session.update_state: marshal: %w", err)
	}
	tag, err := r.Pool.Exec(ctx, `UPDATE sessions SET state=$2 WHERE id=$1`, id, stateJSON)
	if err != nil {
		return fmt.Errorf("op=session.update_state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update_state: %w", domain.ErrNotFound)
	}
	return nil
}

// Finish marks a session finished. Finishing twice is a conflict.
func (r *SessionRepo) Finish(ctx domain.Context, id string, at time.Time) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Finish")
	defer span.End()

	q := `UPDATE sessions SET status=$2, finished_at=$3 WHERE id=$1 AND status=$4`
	tag, err := r.Pool.Exec(ctx, q, id, domain.SessionFinished, at, domain.SessionActive)
	if err != nil {
		return fmt.Errorf("op=session.finish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.finish: %w", domain.ErrConflict)
	}
	return nil
}
