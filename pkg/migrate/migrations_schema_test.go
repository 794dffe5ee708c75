package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/homecook-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
	for i, path := range onDisk {
		if filepath.Base(path) != embedded[i] {
			t.Fatalf("migration %d: disk %s, embedded %s", i, filepath.Base(path), embedded[i])
		}
	}
}

func TestNewRunnerRequiresDB(t *testing.T) {
	if _, err := migrate.NewRunner(nil, nil, nil); err == nil {
		t.Fatal("expected error without a database")
	}
}

func TestOrdersMigrationGuardsMoneyInvariants(t *testing.T) {
	content := readMigration(t, "*_create_orders_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (producer_net_amount >= 0)",
		"CHECK (payable_amount >= 0)",
		"commission_rate_snapshot numeric(6,4) NOT NULL",
		"CHECK (refunded_amount <= amount)",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDisputesMigrationAllowsOneActiveDispute(t *testing.T) {
	content := readMigration(t, "*_create_disputes_reviews.sql")
	if !strings.Contains(content, "CREATE UNIQUE INDEX IF NOT EXISTS disputes_one_active_per_order") {
		t.Fatal("expected partial unique index on active disputes")
	}
}

func TestOutboxMigrationKeepsDeadLetterConsistent(t *testing.T) {
	content := readMigration(t, "*_create_outbox.sql")
	for _, sub := range []string{
		"CHECK (NOT dead_letter OR status = 'dead')",
		"CONSTRAINT published_events_outbox_event_id_key UNIQUE (outbox_event_id)",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
