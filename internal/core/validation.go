package core

// validation.go applies the structural rules every imported row must pass
// before it may reach the catalog.
//
// Validation happens at two levels:
//  1. Header validation: the import mode's required columns are present
//  2. Row validation: each cell is checked and converted onto an ImportRecord
//
// A row that fails any check becomes an invalid record carrying every
// problem found, so the operator can fix them all in one edit. Validation is
// pure: it never performs I/O and never touches a session.

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DosageUnits is the accepted dosage unit vocabulary (lower case).
var DosageUnits = []string{"mg", "mcg", "g", "kg", "ml", "l", "iu", "unit", "%", "meq", "mmol"}

// RawRow is one source row keyed by canonical column name.
type RawRow struct {
	Line   int
	Values map[string]string
}

// Get returns the cleaned cell for a column, or "" when absent.
func (r RawRow) Get(col string) string {
	return CleanCell(r.Values[col])
}

// ValidationRules carries the reference data a row is checked against.
type ValidationRules struct {
	// Categories enables category checks when non-nil.
	Categories []Category
}

// Validate converts a raw row into a record with the given identity.
// The record is pending when every check passes and invalid otherwise.
func Validate(id uuid.UUID, raw RawRow, rules ValidationRules) *ImportRecord {
	rec := &ImportRecord{
		ID:           id,
		Line:         raw.Line,
		Barcode:      raw.Get(ColBarcode),
		Name:         raw.Get(ColName),
		BrandName:    raw.Get(ColBrandName),
		CategoryName: raw.Get(ColCategory),
		Description:  raw.Get(ColDescription),
		SideEffects:  raw.Get(ColSideEffects),
		Status:       StatusPending,
	}
	rec.ImportedName = rec.Name
	rec.ImportedBrand = rec.BrandName

	var errs []ValidationError

	if rec.Barcode == "" {
		errs = append(errs, ValidationError{Field: ColBarcode, Message: "required field is empty"})
	}
	if rec.Name == "" {
		errs = append(errs, ValidationError{Field: ColName, Message: "required field is empty"})
	}

	qty := raw.Get(ColQuantity)
	if n, err := ParseQuantity(qty); err != nil {
		errs = append(errs, ValidationError{Field: ColQuantity, Value: qty, Message: err.Error()})
	} else {
		rec.Quantity = n
	}

	if v := raw.Get(ColExpiry); v != "" {
		if t, err := ParseExpiry(v); err != nil {
			errs = append(errs, ValidationError{Field: ColExpiry, Value: v, Message: err.Error()})
		} else {
			rec.Expiry = &t
		}
	}

	if v := raw.Get(ColDosageUnit); v != "" {
		unit := strings.ToLower(v)
		if !isDosageUnit(unit) {
			errs = append(errs, ValidationError{
				Field:   ColDosageUnit,
				Value:   v,
				Message: fmt.Sprintf("invalid enum: must be one of %s", strings.Join(DosageUnits, ", ")),
			})
		} else {
			rec.DosageUnit = unit
		}
	}

	if v := raw.Get(ColDosageAmount); v != "" {
		if amt, err := ParseDosageAmount(v); err != nil {
			errs = append(errs, ValidationError{Field: ColDosageAmount, Value: v, Message: err.Error()})
		} else {
			rec.DosageAmount = amt
		}
	}

	if v := raw.Get(ColPrescription); v != "" {
		if b, err := ParseBool(v); err != nil {
			errs = append(errs, ValidationError{Field: ColPrescription, Value: v, Message: err.Error()})
		} else {
			rec.Prescription = b
		}
	}

	if rec.CategoryName != "" && rules.Categories != nil {
		if cat, ok := ResolveCategory(rec.CategoryName, rules.Categories); ok {
			rec.Category = &cat
		} else {
			errs = append(errs, ValidationError{Field: ColCategory, Value: rec.CategoryName, Message: "unknown category"})
		}
	}

	if len(errs) > 0 {
		rec.Status = StatusInvalid
		rec.ValidationErrors = make([]string, len(errs))
		for i, e := range errs {
			rec.ValidationErrors[i] = e.Error()
		}
	}

	return rec
}

// ValidateManual checks the operator-supplied fields of a manually added record.
func ValidateManual(quantity int, expiry *time.Time) error {
	if quantity <= 0 || quantity > MaxQuantity {
		return ValidationError{
			Field:   ColQuantity,
			Value:   fmt.Sprint(quantity),
			Message: fmt.Sprintf("must be between 1 and %d", MaxQuantity),
		}
	}
	if expiry != nil && expiry.IsZero() {
		return ValidationError{Field: ColExpiry, Message: "invalid date"}
	}
	return nil
}

// ValidateHeaders checks that all columns required by the mode are present.
func ValidateHeaders(idx HeaderIndex, mode ImportMode) error {
	var missing []string
	for _, col := range mode.Required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s import: %s", ErrMissingColumns, mode.Key, strings.Join(missing, ", "))
	}
	return nil
}

// ResolveCategory finds a category by name or prefix, case-insensitively.
func ResolveCategory(name string, categories []Category) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	for _, c := range categories {
		if c.Prefix != "" && strings.EqualFold(c.Prefix, name) {
			return c, true
		}
	}
	return Category{}, false
}

func isDosageUnit(unit string) bool {
	for _, u := range DosageUnits {
		if u == unit {
			return true
		}
	}
	return false
}
