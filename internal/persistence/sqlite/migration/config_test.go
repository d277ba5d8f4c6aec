package migration

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSQLiteConfig_DSN(t *testing.T) {
	t.Parallel()

	dsn := DefaultSQLiteConfig("data/scheduler.db").DSN()
	path, query, ok := strings.Cut(dsn, "?")
	if !ok || path != "data/scheduler.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	want := map[string]bool{
		"busy_timeout(5000)":  true,
		"foreign_keys(1)":     true,
		"journal_mode(WAL)":   true,
		"synchronous(NORMAL)": true,
	}
	for _, pragma := range values["_pragma"] {
		delete(want, pragma)
	}
	if len(want) != 0 {
		t.Fatalf("missing pragmas %v in %q", want, dsn)
	}

	if got := (SQLiteConfig{Path: "plain.db"}).DSN(); got != "plain.db" {
		t.Fatalf("expected bare path, got %q", got)
	}
}

func TestSQLiteConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := map[string]SQLiteConfig{
		"empty path":      {},
		"bad journal":     {Path: "x.db", JournalMode: "FAST"},
		"bad synchronous": {Path: "x.db", Synchronous: "SOMETIMES"},
		"negative busy":   {Path: "x.db", BusyTimeout: -time.Second},
		"negative pool":   {Path: "x.db", MaxOpenConns: -1},
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := TempFileTestSQLiteConfig("x.db").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
