package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// ReportRepo persists assembled reports, one per session.
type ReportRepo struct{ Pool PgxPool }

// NewReportRepo constructs a ReportRepo with the given pool.
func NewReportRepo(p PgxPool) *ReportRepo { return &ReportRepo{Pool: p} }

// Upsert stores the report, replacing any earlier assembly for the session.
func (r *ReportRepo) Upsert(ctx domain.Context, rep domain.Report) error {
	tracer := otel.Tracer("repo.reports")
	ctx, span := tracer.Start(ctx, "reports.Upsert")
	defer span.End()

	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("op=report.upsert: marshal: %w", err)
	}
	q := `INSERT INTO reports (session_id, report, created_at)
	      VALUES ($1,$2,$3)
	      ON CONFLICT (session_id) DO UPDATE SET report=EXCLUDED.report, created_at=EXCLUDED.created_at`
	if _, err := r.Pool.Exec(ctx, q, rep.SessionID, body, rep.CreatedAt); err != nil {
		return fmt.Errorf("op=report.upsert: %w", err)
	}
	return nil
}

// GetBySession loads the report for a session.
func (r *ReportRepo) GetBySession(ctx domain.Context, sessionID string) (domain.Report, error) {
	tracer := otel.Tracer("repo.reports")
	ctx, span := tracer.Start(ctx, "reports.GetBySession")
	defer span.End()

	var body []byte
	row := r.Pool.QueryRow(ctx, `SELECT report FROM reports WHERE session_id=$1`, sessionID)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, fmt.Errorf("op=report.get: %w", domain.ErrNotFound)
		}
		return domain.Report{}, fmt.Errorf("op=report.get: %w", err)
	}
	var rep domain.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		return domain.Report{}, fmt.Errorf("op=report.get: unmarshal: %w", err)
	}
	return rep, nil
}
