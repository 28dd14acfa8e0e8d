package core

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidate_ValidRow(t *testing.T) {
	id := uuid.New()
	rec := Validate(id, row(4,
		ColBarcode, "123",
		ColName, "Paracetamol",
		ColBrandName, "Panadol",
		ColQuantity, "50",
		ColExpiry, "12/31/2025",
		ColDosageAmount, "500",
		ColDosageUnit, "MG",
		ColPrescription, "no",
	), ValidationRules{})

	if rec.Status != StatusPending {
		t.Fatalf("Status = %s, want pending (errors: %v)", rec.Status, rec.ValidationErrors)
	}
	if rec.ID != id || rec.Line != 4 {
		t.Errorf("identity = %s/%d", rec.ID, rec.Line)
	}
	if rec.Quantity != 50 {
		t.Errorf("Quantity = %d, want 50", rec.Quantity)
	}
	if rec.ExpiryISO() != "2025-12-31" {
		t.Errorf("Expiry = %q, want 2025-12-31", rec.ExpiryISO())
	}
	if rec.DosageUnit != "mg" {
		t.Errorf("DosageUnit = %q, want mg", rec.DosageUnit)
	}
	if rec.ImportedName != "Paracetamol" || rec.ImportedBrand != "Panadol" {
		t.Errorf("imported text not kept: %q/%q", rec.ImportedName, rec.ImportedBrand)
	}
}

// A negative quantity is rejected before any matching happens.
func TestValidate_NegativeQuantity(t *testing.T) {
	rec := Validate(uuid.New(), row(1,
		ColBarcode, "123", ColName, "Paracetamol", ColQuantity, "-5", ColExpiry, "12/31/2025",
	), ValidationRules{})

	if rec.Status != StatusInvalid {
		t.Fatalf("Status = %s, want invalid", rec.Status)
	}
	if len(rec.ValidationErrors) == 0 {
		t.Fatal("ValidationErrors is empty")
	}

	cat := &fakeCatalog{products: []CatalogProduct{{ID: "p1", Barcode: "123", Name: "Paracetamol"}}}
	m := NewMatcher(cat, MatcherOptions{})
	if err := m.Match(testContext(t), rec, mustMode(t, ModeExisting)); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rec.Status != StatusInvalid || cat.lookups != 0 {
		t.Errorf("invalid record reached the catalog: status %s, lookups %d", rec.Status, cat.lookups)
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	rec := Validate(uuid.New(), row(1,
		ColQuantity, "0",
		ColExpiry, "31/12/2025",
		ColDosageUnit, "tablets",
		ColDosageAmount, "lots",
		ColPrescription, "maybe",
	), ValidationRules{})

	wantFields := []string{ColBarcode, ColName, ColQuantity, ColExpiry, ColDosageUnit, ColDosageAmount, ColPrescription}
	if len(rec.ValidationErrors) != len(wantFields) {
		t.Fatalf("got %d errors %v, want %d", len(rec.ValidationErrors), rec.ValidationErrors, len(wantFields))
	}
	for i, f := range wantFields {
		if !strings.HasPrefix(rec.ValidationErrors[i], f+":") {
			t.Errorf("error %d = %q, want field %s", i, rec.ValidationErrors[i], f)
		}
	}
}

func TestValidate_QuantityBounds(t *testing.T) {
	tests := []struct {
		qty  string
		want RecordStatus
	}{
		{"1", StatusPending},
		{"999999", StatusPending},
		{"1000000", StatusInvalid},
		{"0", StatusInvalid},
		{"", StatusInvalid},
		{"3.5", StatusInvalid},
	}
	for _, tt := range tests {
		rec := Validate(uuid.New(), row(1, ColBarcode, "1", ColName, "x", ColQuantity, tt.qty), ValidationRules{})
		if rec.Status != tt.want {
			t.Errorf("quantity %q: status %s, want %s", tt.qty, rec.Status, tt.want)
		}
	}
}

func TestValidate_ExpiryOptional(t *testing.T) {
	rec := Validate(uuid.New(), row(1, ColBarcode, "1", ColName, "x", ColQuantity, "3"), ValidationRules{})
	if rec.Status != StatusPending || rec.Expiry != nil {
		t.Errorf("status %s expiry %v, want pending with no expiry", rec.Status, rec.Expiry)
	}
}

func TestValidate_Category(t *testing.T) {
	cats := []Category{
		{ID: "c1", Name: "Analgesics", Prefix: "ANL"},
		{ID: "c2", Name: "Antibiotics", Prefix: "ABX"},
	}
	base := func(cat string) RawRow {
		return row(1, ColBarcode, "1", ColName, "x", ColQuantity, "3", ColCategory, cat)
	}

	rec := Validate(uuid.New(), base("antibiotics"), ValidationRules{Categories: cats})
	if rec.Category == nil || rec.Category.ID != "c2" {
		t.Errorf("by name: Category = %+v, want c2", rec.Category)
	}

	rec = Validate(uuid.New(), base("anl"), ValidationRules{Categories: cats})
	if rec.Category == nil || rec.Category.ID != "c1" {
		t.Errorf("by prefix: Category = %+v, want c1", rec.Category)
	}

	rec = Validate(uuid.New(), base("Vitamins"), ValidationRules{Categories: cats})
	if rec.Status != StatusInvalid {
		t.Errorf("unknown category: status %s, want invalid", rec.Status)
	}

	// Without a category list the check is skipped.
	rec = Validate(uuid.New(), base("Vitamins"), ValidationRules{})
	if rec.Status != StatusPending || rec.CategoryName != "Vitamins" {
		t.Errorf("no rules: status %s category %q", rec.Status, rec.CategoryName)
	}
}

func TestValidateManual(t *testing.T) {
	if err := ValidateManual(5, nil); err != nil {
		t.Errorf("ValidateManual(5): %v", err)
	}
	for _, q := range []int{0, -1, MaxQuantity + 1} {
		if err := ValidateManual(q, nil); err == nil {
			t.Errorf("ValidateManual(%d) should fail", q)
		}
	}
}

func TestValidateHeaders(t *testing.T) {
	existing := mustMode(t, ModeExisting)

	idx := MakeHeaderIndex([]string{"Barcode", "Name", "Quantity", "Expiry", "Extra"})
	if err := ValidateHeaders(idx, existing); err != nil {
		t.Errorf("complete headers: %v", err)
	}

	idx = MakeHeaderIndex([]string{"Barcode", "Quantity"})
	err := ValidateHeaders(idx, existing)
	if err == nil {
		t.Fatal("missing headers accepted")
	}
	if !strings.Contains(err.Error(), "name, expiry") {
		t.Errorf("error %q should list missing columns in order", err)
	}
}
