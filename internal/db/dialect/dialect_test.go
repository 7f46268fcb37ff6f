package dialect

import "testing"

func TestIsPostgres(t *testing.T) {
	if !IsPostgres(PGX) {
		t.Error("expected pgx to be postgres")
	}
	if IsPostgres(SQLite3) {
		t.Error("expected sqlite3 to not be postgres")
	}
}

func TestBoolToInt(t *testing.T) {
	if BoolToInt(true) != 1 {
		t.Error("expected 1 for true")
	}
	if BoolToInt(false) != 0 {
		t.Error("expected 0 for false")
	}
}

func TestSkipLocked(t *testing.T) {
	if SkipLocked(SQLite3) != "" {
		t.Errorf("sqlite: got %q", SkipLocked(SQLite3))
	}
	if SkipLocked(PGX) != " FOR UPDATE SKIP LOCKED" {
		t.Errorf("pgx: got %q", SkipLocked(PGX))
	}
}
