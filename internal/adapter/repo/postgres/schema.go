package postgres

import (
	"fmt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    language TEXT NOT NULL,
    difficulty TEXT NOT NULL,
    interviewer_mode TEXT NOT NULL,
    context JSONB NOT NULL DEFAULT '{}'::jsonb,
    plan JSONB NOT NULL DEFAULT '{}'::jsonb,
    state JSONB NOT NULL DEFAULT '{}'::jsonb,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS turns (
    session_id TEXT NOT NULL REFERENCES sessions(id),
    idx INT NOT NULL,
    label TEXT NOT NULL,
    question_type TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    dossier JSONB,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (session_id, idx)
);

CREATE TABLE IF NOT EXISTS reports (
    session_id TEXT PRIMARY KEY REFERENCES sessions(id),
    report JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables when they do not exist. It runs at startup
// so a fresh database needs no out-of-band migration step.
func EnsureSchema(ctx domain.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("op=postgres.ensure_schema: %w", err)
	}
	return nil
}
