package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestStockLedgerMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_stock_ledger.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_items",
		"CONSTRAINT uq_stock_items_branch_product UNIQUE (branch_id, product_id)",
		"CHECK (quantity >= 0)",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"CREATE TABLE IF NOT EXISTS branch_sequences",
		"DROP TABLE IF EXISTS stock_items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSerialUnitsMigrationEnforcesGlobalUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_serial_units.sql")

	checks := []string{
		"serial_code   TEXT NOT NULL UNIQUE",
		"REFERENCES stock_items(id)",
		"DROP TABLE IF EXISTS serial_units",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDocumentsMigrationGuardsRefunds(t *testing.T) {
	content := readMigration(t, "*_create_documents.sql")

	checks := []string{
		"CONSTRAINT uq_sales_branch_sequence UNIQUE (branch_id, sequence_number)",
		"CHECK (refunded_quantity <= quantity)",
		"CHECK (source_branch_id <> dest_branch_id)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
