package database

import (
	"testing"
)

func TestAdminTarget(t *testing.T) {
	tests := []struct {
		dsn, wantDB, wantAdmin string
	}{
		{"postgres://u:p@localhost:5432/intent?sslmode=disable", "intent", "postgres://u:p@localhost:5432/postgres?sslmode=disable"},
		{"postgres://u:p@localhost:5432/postgres", "", ""},
		{"postgres://u:p@localhost:5432", "", ""},
	}
	for _, tt := range tests {
		db, admin, err := adminTarget(tt.dsn)
		if err != nil {
			t.Fatalf("adminTarget(%q) error = %v", tt.dsn, err)
		}
		if db != tt.wantDB || admin != tt.wantAdmin {
			t.Errorf("adminTarget(%q) = %q, %q", tt.dsn, db, admin)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("quoteIdent = %s", got)
	}
}
