package postgres

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// TurnRepo persists the interview transcript.
type TurnRepo struct{ Pool PgxPool }

// NewTurnRepo constructs a TurnRepo with the given pool.
func NewTurnRepo(p PgxPool) *TurnRepo { return &TurnRepo{Pool: p} }

// Append inserts one turn. The (session_id, idx) key keeps the transcript
// append-only; re-inserting an index is a conflict.
func (r *TurnRepo) Append(ctx domain.Context, t domain.Turn) error {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, "turns.Append")
	defer span.End()

	var dossierJSON []byte
	if t.Dossier != nil {
		b, err := json.Marshal(t.Dossier)
		if err != nil {
			return fmt.Errorf("op=turn.append: marshal dossier: %w", err)
		}
		dossierJSON = b
	}

	q := `INSERT INTO turns (session_id, idx, label, question_type, question, answer, dossier, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, t.SessionID, t.Index, t.Label, string(t.QuestionType), t.Question, t.Answer,
		dossierJSON, t.CreatedAt); err != nil {
		return fmt.Errorf("op=turn.append: %w", err)
	}
	return nil
}

// ListBySession returns the session's turns ordered by index.
func (r *TurnRepo) ListBySession(ctx domain.Context, sessionID string) ([]domain.Turn, error) {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, "turns.ListBySession")
	defer span.End()

	q := `SELECT session_id, idx, label, question_type, question, answer, dossier, created_at
	      FROM turns WHERE session_id=$1 ORDER BY idx`
	rows, err := r.Pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("op=turn.list: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var questionType string
		var dossierJSON []byte
		if err := rows.Scan(&t.SessionID, &t.Index, &t.Label, &questionType, &t.Question, &t.Answer,
			&dossierJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=turn.list: scan: %w", err)
		}
		t.QuestionType = domain.QuestionType(questionType)
		if len(dossierJSON) > 0 {
			var d domain.Dossier
			if err := json.Unmarshal(dossierJSON, &d); err != nil {
				return nil, fmt.Errorf("op=turn.list: unmarshal dossier: %w", err)
			}
			t.Dossier = &d
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=turn.list: %w", err)
	}
	return turns, nil
}
