package history

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndLastOrdersMostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	db.RecordCompilation("reload", true, 3, 0)
	db.RecordCompilation("reload", false, 3, 2)

	entries, err := db.Last(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Ok || entries[0].Diagnostics != 2 {
		t.Errorf("entries[0] = %+v, want the failing compilation most recent", entries[0])
	}
	if !entries[1].Ok {
		t.Errorf("entries[1] = %+v, want the earlier successful compilation", entries[1])
	}
}

func TestLastRespectsLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		db.RecordCompilation("add", true, 1, 0)
	}
	entries, err := db.Last(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := Open(dsn)
	if err != nil {
		t.Fatalf("reopening existing db: %v", err)
	}
	defer db2.Close()
	db2.RecordCompilation("restart", true, 10, 0)
	entries, err := db2.Last(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}
