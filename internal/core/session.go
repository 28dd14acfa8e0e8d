package core

import (
	"time"

	"github.com/google/uuid"
)

// Session is one reconciliation run: the ordered records, the undo log and
// the commit progress. It is not safe for concurrent use; Service serializes
// access with a per-session lock.
type Session struct {
	ID        uuid.UUID
	Mode      ImportMode
	FileName  string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Progress is written by the commit pipeline after each chunk.
	Progress ImportProgress

	records []*ImportRecord
	byID    map[uuid.UUID]*ImportRecord
	undo    []UndoEntry
}

// NewSession creates an empty session for the given mode.
func NewSession(mode ImportMode, fileName string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		Mode:      mode,
		FileName:  fileName,
		CreatedAt: now,
		UpdatedAt: now,
		byID:      make(map[uuid.UUID]*ImportRecord),
	}
}

// AddRows validates raw rows and appends them in order.
// It returns the number of rows that failed validation.
func (s *Session) AddRows(rows []RawRow, rules ValidationRules) int {
	invalid := 0
	for _, row := range rows {
		rec := Validate(uuid.New(), row, rules)
		if rec.Status == StatusInvalid {
			invalid++
		}
		s.append(rec)
	}
	return invalid
}

// Len returns the number of records.
func (s *Session) Len() int { return len(s.records) }

// Records returns copies of all records in order.
func (s *Session) Records() []ImportRecord {
	out := make([]ImportRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Filter returns copies of the records with the given status, in order.
func (s *Session) Filter(status RecordStatus) []ImportRecord {
	var out []ImportRecord
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Record returns a copy of one record.
func (s *Session) Record(id uuid.UUID) (ImportRecord, error) {
	r, ok := s.byID[id]
	if !ok {
		return ImportRecord{}, ErrRecordNotFound
	}
	return r.Clone(), nil
}

// HasUndo reports whether the record has a resolution that can be undone.
func (s *Session) HasUndo(id uuid.UUID) bool {
	return s.undoIndex(id) >= 0
}

// Summary counts records by status.
func (s *Session) Summary() SessionSummary {
	sum := SessionSummary{
		SessionID: s.ID,
		Mode:      s.Mode.Key,
		FileName:  s.FileName,
		Total:     len(s.records),
		ByStatus:  make(map[RecordStatus]int, len(AllStatuses)),
		Undoable:  len(s.undo),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, st := range AllStatuses {
		sum.ByStatus[st] = 0
	}
	for _, r := range s.records {
		sum.ByStatus[r.Status]++
	}
	return sum
}

func (s *Session) get(id uuid.UUID) (*ImportRecord, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r, nil
}

func (s *Session) append(rec *ImportRecord) {
	s.records = append(s.records, rec)
	s.byID[rec.ID] = rec
	s.touch()
}

// remove deletes a record and any undo entry for it.
func (s *Session) remove(id uuid.UUID) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	delete(s.byID, id)
	s.dropUndo(id)
	s.touch()
	return true
}

// removeMany deletes a set of records in a single pass over the slice.
func (s *Session) removeMany(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
		delete(s.byID, id)
		s.dropUndo(id)
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if _, ok := gone[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept
	s.touch()
}

func (s *Session) pushUndo(rec *ImportRecord) {
	s.dropUndo(rec.ID)
	s.undo = append(s.undo, UndoEntry{RecordID: rec.ID, Previous: rec.Clone()})
}

func (s *Session) popUndo(id uuid.UUID) (UndoEntry, bool) {
	i := s.undoIndex(id)
	if i < 0 {
		return UndoEntry{}, false
	}
	e := s.undo[i]
	s.undo = append(s.undo[:i], s.undo[i+1:]...)
	return e, true
}

func (s *Session) dropUndo(id uuid.UUID) {
	if i := s.undoIndex(id); i >= 0 {
		s.undo = append(s.undo[:i], s.undo[i+1:]...)
	}
}

func (s *Session) undoIndex(id uuid.UUID) int {
	for i := len(s.undo) - 1; i >= 0; i-- {
		if s.undo[i].RecordID == id {
			return i
		}
	}
	return -1
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
