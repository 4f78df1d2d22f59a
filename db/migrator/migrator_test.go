package migrator_test

import (
	"testing"
	"testing/fstest"

	"github.com/hephy-analysis/analysis-tools/db/migrations"
	"github.com/hephy-analysis/analysis-tools/db/migrator"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":   {Data: []byte("SELECT 1;")},
		"002_second.sql":  {Data: []byte("SELECT 1;")},
		"001_first.sql":   {Data: []byte("SELECT 1;")},
		"README.sql":      {Data: []byte("-- notes")},
		"notes.txt":       {Data: []byte("ignored")},
		"archive/old.sql": {Data: []byte("SELECT 1;")},
	}

	files, err := migrator.MigrationFiles(fsys)
	if err != nil {
		t.Fatalf("MigrationFiles() error = %v", err)
	}

	expected := []string{"001_first.sql", "002_second.sql", "010_later.sql"}
	if len(files) != len(expected) {
		t.Fatalf("MigrationFiles() = %v, expected %v", files, expected)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("files[%d] = %s, expected %s", i, files[i], expected[i])
		}
	}
}

func TestMigrationFiles_Embedded(t *testing.T) {
	files, err := migrator.MigrationFiles(migrations.FS)
	if err != nil {
		t.Fatalf("MigrationFiles() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no embedded migrations")
	}
	if files[0] != "001_sync_ledger.sql" {
		t.Errorf("first migration = %s, expected 001_sync_ledger.sql", files[0])
	}
}

func TestChecksum(t *testing.T) {
	a := migrator.Checksum([]byte("CREATE TABLE a ();"))
	b := migrator.Checksum([]byte("CREATE TABLE b ();"))

	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
	if a == b {
		t.Error("different content should have different checksums")
	}
	if a != migrator.Checksum([]byte("CREATE TABLE a ();")) {
		t.Error("checksum should be deterministic")
	}
}
