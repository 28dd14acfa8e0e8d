package app

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/rxstock/internal/config"
)

func TestServiceConfig(t *testing.T) {
	ic := config.ImportConfig{
		MaxFileSize:          1 << 20,
		ChunkSize:            10,
		CallTimeout:          15 * time.Second,
		CommitTimeout:        10 * time.Minute,
		MaxConcurrentCommits: 4,
		CommitWaitTime:       30 * time.Second,
		CandidateLimit:       25,
		SessionTTL:           4 * time.Hour,
	}
	sc := ServiceConfig(ic)

	if sc.ChunkSize != 10 || sc.CallTimeout != 15*time.Second || sc.CommitTimeout != 10*time.Minute {
		t.Errorf("timing fields not mapped: %+v", sc)
	}
	if sc.MaxConcurrentCommits != 4 || sc.CommitWaitTime != 30*time.Second {
		t.Errorf("limiter fields not mapped: %+v", sc)
	}
	if sc.CandidateLimit != 25 || sc.SessionTTL != 4*time.Hour || sc.MaxFileSize != 1<<20 {
		t.Errorf("remaining fields not mapped: %+v", sc)
	}
}

func TestDatabaseName(t *testing.T) {
	tests := map[string]string{
		"postgres://user:secret@db:5432/pharmacy?sslmode=disable": "pharmacy",
		"postgres://localhost/":                                   "",
		"://bad":                                                  "",
	}
	for in, want := range tests {
		if got := databaseName(in); got != want {
			t.Errorf("databaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_BadDatabaseURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://localhost/db%zz"}}
	if _, err := Build(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("Build() expected error for unparsable database url")
	}
}
