package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployment (
	id                UUID PRIMARY KEY,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	kind              TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	platform          TEXT NOT NULL,
	endpoint_name     TEXT NOT NULL DEFAULT '',
	model_data_url    TEXT NOT NULL DEFAULT '',
	training_job_name TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	last_error        TEXT NOT NULL DEFAULT '',
	labels            JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS deployment_kind_status_idx ON deployment (kind, status);
CREATE INDEX IF NOT EXISTS deployment_created_at_idx ON deployment (created_at DESC);
`

// EnsureSchema creates the deployment table when it is missing
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure deployment schema: %w", err)
	}
	return nil
}
