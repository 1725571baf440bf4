package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"parkwise-booking-core/internal/logger"
)

// Schema creates the reservation tables. properties, slots and customers are owned by the
// catalog service and are created here only so a fresh database is usable.
//
// booking_slots_no_overlap is the storage-level guarantee against double booking: two unreleased
// assignments of one slot can never have intersecting [start, end) periods.
const Schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS properties (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	hourly_rate NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (hourly_rate >= 0),
	daily_rate  NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (daily_rate >= 0),
	currency    CHAR(3) NOT NULL DEFAULT 'INR',
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS slots (
	id          BIGSERIAL PRIMARY KEY,
	property_id BIGINT NOT NULL REFERENCES properties(id),
	label       TEXT NOT NULL,
	slot_type   TEXT NOT NULL DEFAULT 'NORMAL' CHECK (slot_type IN ('NORMAL', 'EV', 'WASH_BAY')),
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS customers (
	ref   TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bookings (
	id              BIGSERIAL PRIMARY KEY,
	customer_ref    TEXT NOT NULL,
	property_id     BIGINT NOT NULL REFERENCES properties(id),
	start_time      TIMESTAMPTZ NOT NULL,
	end_time        TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL CHECK (status IN ('PENDING', 'PAID', 'CANCELLED')),
	category        TEXT NOT NULL,
	idempotency_key TEXT,
	created_by      TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	CHECK (start_time < end_time)
);
CREATE UNIQUE INDEX IF NOT EXISTS bookings_idempotency_key_idx ON bookings (idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS booking_slots (
	booking_id  BIGINT NOT NULL REFERENCES bookings(id),
	slot_id     BIGINT NOT NULL REFERENCES slots(id),
	period      TSTZRANGE NOT NULL,
	released_at TIMESTAMPTZ,
	PRIMARY KEY (booking_id, slot_id),
	CONSTRAINT booking_slots_no_overlap EXCLUDE USING gist (slot_id WITH =, period WITH &&) WHERE (released_at IS NULL)
);

CREATE TABLE IF NOT EXISTS payment_summaries (
	booking_id   BIGINT PRIMARY KEY REFERENCES bookings(id),
	total_amount NUMERIC(14,4) NOT NULL CHECK (total_amount > 0),
	online_paid  NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (online_paid >= 0),
	cash_paid    NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (cash_paid >= 0),
	balance_due  NUMERIC(14,4) NOT NULL CHECK (balance_due >= 0),
	currency     CHAR(3) NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_events (
	id              BIGSERIAL PRIMARY KEY,
	booking_id      BIGINT NOT NULL REFERENCES bookings(id),
	amount          NUMERIC(14,4) NOT NULL CHECK (amount > 0),
	method          TEXT NOT NULL CHECK (method IN ('CARD', 'CASH')),
	status          TEXT NOT NULL CHECK (status IN ('PAID', 'PENDING', 'FAILED')),
	reference       TEXT,
	idempotency_key TEXT,
	recorded_by     TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS payment_events_idempotency_key_idx ON payment_events (idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS payment_events_booking_idx ON payment_events (booking_id, id);

CREATE TABLE IF NOT EXISTS booking_status_history (
	id         BIGSERIAL PRIMARY KEY,
	booking_id BIGINT NOT NULL REFERENCES bookings(id),
	old_status TEXT,
	new_status TEXT NOT NULL,
	actor      TEXT NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS booking_status_history_booking_idx ON booking_status_history (booking_id, id);

CREATE OR REPLACE FUNCTION parkwise_reject_mutation() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS payment_events_append_only ON payment_events;
CREATE TRIGGER payment_events_append_only BEFORE UPDATE OR DELETE ON payment_events
	FOR EACH ROW EXECUTE FUNCTION parkwise_reject_mutation();

DROP TRIGGER IF EXISTS booking_status_history_append_only ON booking_status_history;
CREATE TRIGGER booking_status_history_append_only BEFORE UPDATE OR DELETE ON booking_status_history
	FOR EACH ROW EXECUTE FUNCTION parkwise_reject_mutation();
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.Info("Applying database schema")
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
