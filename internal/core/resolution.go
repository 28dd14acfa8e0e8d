package core

// resolution.go holds the operator actions on a session: picking a
// candidate, undoing that choice, adding and removing records by hand, and
// editing a row so it is validated again.

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolve links a similar record to one of its candidates.
func (s *Session) Resolve(id uuid.UUID, productID string) (ImportRecord, error) {
	rec, err := s.get(id)
	if err != nil {
		return ImportRecord{}, err
	}
	if rec.Status != StatusSimilar {
		return ImportRecord{}, precondition(id, "resolve", fmt.Sprintf("record is %s, not similar", rec.Status))
	}

	var chosen *CatalogProduct
	for i := range rec.CandidateMatches {
		if rec.CandidateMatches[i].Product.ID == productID {
			chosen = &rec.CandidateMatches[i].Product
			break
		}
	}
	if chosen == nil {
		return ImportRecord{}, precondition(id, "resolve", fmt.Sprintf("product %s is not a candidate", productID))
	}
	product := *chosen

	s.pushUndo(rec)
	if err := markMatched(rec, product); err != nil {
		s.dropUndo(id)
		return ImportRecord{}, err
	}
	s.touch()
	return rec.Clone(), nil
}

// Undo restores the record to its state before the last resolution.
func (s *Session) Undo(id uuid.UUID) (ImportRecord, error) {
	rec, err := s.get(id)
	if err != nil {
		return ImportRecord{}, err
	}
	entry, ok := s.popUndo(id)
	if !ok {
		return ImportRecord{}, precondition(id, "undo", "no resolution to undo")
	}
	*rec = entry.Previous.Clone()
	s.touch()
	return rec.Clone(), nil
}

// AddRecord appends a matched record for a catalog product chosen by hand.
// It bypasses matching and has no undo entry.
func (s *Session) AddRecord(product CatalogProduct, quantity int, expiry *time.Time) (ImportRecord, error) {
	if err := ValidateManual(quantity, expiry); err != nil {
		return ImportRecord{}, err
	}
	rec := &ImportRecord{
		ID:            uuid.New(),
		Barcode:       product.Barcode,
		ImportedName:  product.Name,
		ImportedBrand: product.BrandName,
		Quantity:      quantity,
		Status:        StatusPending,
		Manual:        true,
	}
	if expiry != nil {
		e := *expiry
		rec.Expiry = &e
	}
	if err := markMatched(rec, product); err != nil {
		return ImportRecord{}, err
	}
	s.append(rec)
	return rec.Clone(), nil
}

// Remove deletes a record regardless of status. There is no undo.
func (s *Session) Remove(id uuid.UUID) error {
	if !s.remove(id) {
		return ErrRecordNotFound
	}
	return nil
}

// Edit replaces a record's content with a corrected row, keeping its ID and
// position. The row goes through validation again, so the result is either
// pending (ready to match) or invalid. Any undo entry is dropped.
func (s *Session) Edit(id uuid.UUID, raw RawRow, rules ValidationRules) (ImportRecord, error) {
	rec, err := s.get(id)
	if err != nil {
		return ImportRecord{}, err
	}
	if raw.Line == 0 {
		raw.Line = rec.Line
	}
	*rec = *Validate(id, raw, rules)
	s.dropUndo(id)
	s.touch()
	return rec.Clone(), nil
}
