package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestDriverURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/rx?sslmode=disable": "pgx5://u:p@db:5432/rx?sslmode=disable",
		"postgresql://db/rx":                        "pgx5://db/rx",
		"pgx5://db/rx":                              "pgx5://db/rx",
	}
	for in, want := range tests {
		if got := driverURL(in); got != want {
			t.Errorf("driverURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// Every up migration needs a matching down migration.
func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
	for v := range downs {
		if !ups[v] {
			t.Errorf("migration %s has no up file", v)
		}
	}
}
