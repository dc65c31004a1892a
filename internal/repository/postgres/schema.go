package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             BIGSERIAL PRIMARY KEY,
		email          TEXT NOT NULL,
		password_hash  TEXT NOT NULL,
		name           TEXT NOT NULL,
		phone          TEXT NOT NULL DEFAULT '',
		role           TEXT NOT NULL CHECK (role IN ('patient', 'doctor')),
		specialization TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_uniq ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id           BIGSERIAL PRIMARY KEY,
		patient_id   BIGINT NOT NULL REFERENCES users (id),
		doctor_id    BIGINT NOT NULL REFERENCES users (id),
		patient_name TEXT NOT NULL,
		doctor_name  TEXT NOT NULL,
		date         TEXT NOT NULL,
		time_slot    TEXT NOT NULL,
		service      TEXT NOT NULL,
		status       TEXT NOT NULL CHECK (status IN ('upcoming', 'completed', 'cancelled')),
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_slot_uniq
		ON appointments (doctor_id, date, time_slot) WHERE status <> 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id)`,
	`CREATE TABLE IF NOT EXISTS medical_reports (
		id             BIGSERIAL PRIMARY KEY,
		patient_id     BIGINT NOT NULL REFERENCES users (id),
		appointment_id BIGINT REFERENCES appointments (id) ON DELETE SET NULL,
		file_name      TEXT NOT NULL,
		file_url       TEXT NOT NULL,
		file_type      TEXT NOT NULL,
		file_size      BIGINT NOT NULL DEFAULT 0,
		upload_date    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id            UUID PRIMARY KEY,
		event_type    TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL,
		error_message TEXT,
		retry_count   INT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at  TIMESTAMPTZ
	)`,
	`ALTER TABLE outbox_events ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS outbox_events_pending_idx ON outbox_events (created_at) WHERE status = 'PENDING'`,
}

// Migrate creates the portal tables when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// IsEmpty reports whether the users table has no rows, so seeding is safe.
func IsEmpty(ctx context.Context, db *sqlx.DB) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n == 0, nil
}
