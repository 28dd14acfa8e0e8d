package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"precondition", precondition(uuid.New(), "undo", "no resolution to undo"), "RES001"},
		{"wrapped precondition", fmt.Errorf("resolve: %w", precondition(uuid.New(), "resolve", "x")), "RES001"},
		{"record not found", ErrRecordNotFound, "RES002"},
		{"product not found", fmt.Errorf("product p1: %w", ErrProductNotFound), "RES003"},
		{"skipped not acknowledged", fmt.Errorf("3 record(s): %w", ErrSkippedNotAcknowledged), "COM001"},
		{"too many commits", ErrTooManyCommits, "COM002"},
		{"batch rejected", &CommitBatchError{Chunk: 2, Records: 5, Err: errors.New("violates check constraint")}, "COM003"},
		{"batch timed out", &CommitBatchError{Chunk: 0, Records: 10, Err: context.DeadlineExceeded}, "COM004"},
		{"cancelled", fmt.Errorf("commit cancelled before chunk 2: %w", context.Canceled), "COM005"},
		{"batch cancelled", &CommitBatchError{Err: context.Canceled}, "COM005"},
		{"commit deadline", fmt.Errorf("commit timed out before chunk 3: %w", context.DeadlineExceeded), "COM007"},
		{"session not found", ErrSessionNotFound, "SES001"},
		{"session busy", ErrSessionBusy, "SES002"},
		{"unknown mode", fmt.Errorf("%w: %q", ErrUnknownMode, "bogus"), "SES003"},
		{"missing columns", fmt.Errorf("%w for existing import: expiry", ErrMissingColumns), "VAL004"},
		{"file too large", ErrFileTooLarge, "FILE001"},
		{"empty file", ErrEmptyFile, "FILE003"},
		{"lookup", &MatchLookupError{Barcode: "1", Err: errors.New("dial tcp: connection refused")}, "MAT001"},
		{"invalid date", errors.New(`expiry: invalid date "13/40/2025"`), "VAL001"},
		{"enum", errors.New("dosage_unit: invalid enum: must be one of mg"), "VAL006"},
		{"csv", errors.New("parse csv: record on line 3: bare quote"), "FILE002"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"case insensitive", errors.New("DEADLOCK detected"), "DB007"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrSessionBusy)
	want := "A commit is running for this import (Code: SES002). Wait for the commit to finish"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrRecordNotFound) {
		t.Error("ErrRecordNotFound should be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("unmatched error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Fatal("NewUserError(nil) should be nil")
	}

	ue := NewUserError(ErrSessionNotFound)
	if ue.User.Code != "SES001" {
		t.Errorf("Code = %q, want SES001", ue.User.Code)
	}
	if !errors.Is(ue, ErrSessionNotFound) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.Error() != ue.User.Message {
		t.Errorf("Error() = %q, want the user message", ue.Error())
	}
}
