package core

import "fmt"

// transitions lists the status changes a classification step may make.
// Restoring an undo snapshot and re-validating an edited row replace the
// record wholesale and are not transitions.
var transitions = map[RecordStatus][]RecordStatus{
	StatusPending: {StatusMatched, StatusSimilar, StatusNew, StatusInvalid},
	StatusSimilar: {StatusMatched},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to RecordStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Eligible reports whether records with the status are committed.
func Eligible(status RecordStatus) bool {
	return status == StatusMatched || status == StatusNew
}

func checkTransition(rec *ImportRecord, to RecordStatus) error {
	if !CanTransition(rec.Status, to) {
		return fmt.Errorf("record %s %s -> %s: %w", rec.ID, rec.Status, to, ErrIllegalTransition)
	}
	return nil
}

// markMatched links the record to a catalog product and adopts the catalog's
// descriptive fields. The imported name and brand are kept for display.
func markMatched(rec *ImportRecord, p CatalogProduct) error {
	if err := checkTransition(rec, StatusMatched); err != nil {
		return err
	}
	applyProduct(rec, p)
	rec.Status = StatusMatched
	rec.CandidateMatches = nil
	rec.ValidationErrors = nil
	rec.LookupError = ""
	return nil
}

func markSimilar(rec *ImportRecord, candidates []Candidate) error {
	if err := checkTransition(rec, StatusSimilar); err != nil {
		return err
	}
	rec.Status = StatusSimilar
	rec.MatchedProduct = nil
	rec.CandidateMatches = candidates
	return nil
}

func markNew(rec *ImportRecord) error {
	if err := checkTransition(rec, StatusNew); err != nil {
		return err
	}
	rec.Status = StatusNew
	rec.MatchedProduct = nil
	rec.CandidateMatches = nil
	return nil
}

func markInvalid(rec *ImportRecord, validation string, lookup error) error {
	if err := checkTransition(rec, StatusInvalid); err != nil {
		return err
	}
	rec.Status = StatusInvalid
	rec.MatchedProduct = nil
	rec.CandidateMatches = nil
	if validation != "" {
		rec.ValidationErrors = append(rec.ValidationErrors, validation)
	}
	if lookup != nil {
		rec.LookupError = lookup.Error()
	}
	return nil
}

func applyProduct(rec *ImportRecord, p CatalogProduct) {
	if rec.ImportedName == "" && rec.ImportedBrand == "" {
		rec.ImportedName = rec.Name
		rec.ImportedBrand = rec.BrandName
	}
	prod := p
	rec.MatchedProduct = &prod
	if rec.Barcode == "" {
		rec.Barcode = p.Barcode
	}
	rec.Name = p.Name
	rec.BrandName = p.BrandName
	if p.CategoryID != "" || p.CategoryName != "" {
		rec.Category = &Category{ID: p.CategoryID, Name: p.CategoryName}
		rec.CategoryName = p.CategoryName
	}
	if p.DosageAmount != "" {
		rec.DosageAmount = p.DosageAmount
	}
	if p.DosageUnit != "" {
		rec.DosageUnit = p.DosageUnit
	}
}
