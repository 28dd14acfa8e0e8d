package core

import (
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"long form", "12/31/2025", date(2025, 12, 31), false},
		{"long form single digits", "1/5/2026", date(2026, 1, 5), false},
		{"short form is end of month", "06/26", date(2026, 6, 30), false},
		{"short form february leap year", "02/24", date(2024, 2, 29), false},
		{"short form february", "2/25", date(2025, 2, 28), false},
		{"short form december", "12/25", date(2025, 12, 31), false},
		{"whitespace", "  03/15/2027 ", date(2027, 3, 15), false},

		{"empty", "", time.Time{}, true},
		{"impossible day", "02/30/2025", time.Time{}, true},
		{"month out of range", "13/2025", time.Time{}, true},
		{"iso not accepted", "2025-12-31", time.Time{}, true},
		{"text", "soon", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiry(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseExpiry(%q) = %v, want error", tt.input, got)
				}
				if !strings.Contains(err.Error(), "invalid date") {
					t.Errorf("error %q should mention invalid date", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExpiry(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseExpiry(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr string
	}{
		{"50", 50, ""},
		{"1", 1, ""},
		{"1,200", 1200, ""},
		{"50.0", 50, ""},
		{" 7 ", 7, ""},
		{"999999", 999999, ""},

		{"", 0, "required field"},
		{"0", 0, "must be a positive"},
		{"-5", 0, "must be a positive"},
		{"2.5", 0, "invalid number"},
		{"ten", 0, "invalid number"},
		{"1000000", 0, "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseQuantity(%q) error = %v, want %q", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuantity(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuantity(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"true", "T", "yes", "Y", "1", " Yes "} {
		if v, err := ParseBool(in); err != nil || !v {
			t.Errorf("ParseBool(%q) = %v, %v; want true", in, v, err)
		}
	}
	for _, in := range []string{"false", "f", "NO", "n", "0"} {
		if v, err := ParseBool(in); err != nil || v {
			t.Errorf("ParseBool(%q) = %v, %v; want false", in, v, err)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Error("ParseBool(maybe) should fail")
	}
}

func TestParseDosageAmount(t *testing.T) {
	for _, in := range []string{"500", "2.5", "0.25"} {
		if got, err := ParseDosageAmount(in); err != nil || got != in {
			t.Errorf("ParseDosageAmount(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"0", "-1", "abc", "5mg", ""} {
		if _, err := ParseDosageAmount(in); err == nil {
			t.Errorf("ParseDosageAmount(%q) should fail", in)
		}
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Barcode":         "barcode",
		" Brand Name ":    "brand_name",
		"Side-Effects":    "side_effects",
		"DOSAGE   AMOUNT": "dosage_amount",
		`="dosage_unit"`:  "dosage_unit",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{"Barcode", "Name", "", "name", "Quantity"})

	if idx[ColBarcode] != 0 || idx[ColQuantity] != 4 {
		t.Errorf("unexpected index %v", idx)
	}
	if idx[ColName] != 1 {
		t.Errorf("duplicate header: got %d, want first occurrence 1", idx[ColName])
	}
	if len(idx) != 3 {
		t.Errorf("len = %d, want 3 (blank headers dropped)", len(idx))
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
