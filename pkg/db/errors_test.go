package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "published_events_outbox_event_id_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "published_events_outbox_event_id_key") {
		t.Fatal("expected pgconn unique violation to match constraint")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatal("expected constraint mismatch to be rejected")
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "disputes_one_active_per_order"}
	if !IsUniqueViolation(pqErr, "") {
		t.Fatal("expected lib/pq unique violation")
	}

	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: published_events.outbox_event_id"), "") {
		t.Fatal("expected sqlite message to match")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unexpected match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error must not match")
	}
}
