package core

// service_records.go exposes the resolution workflow through the Service,
// adding catalog access, logging and audit around the Session methods.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolve links a similar record to the chosen candidate product.
func (s *Service) Resolve(ctx context.Context, sessionID, recordID uuid.UUID, productID string) (ImportRecord, error) {
	var rec ImportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		var err error
		rec, err = sess.Resolve(recordID, productID)
		return err
	})
	if err != nil {
		return ImportRecord{}, err
	}

	s.logger.Info("record resolved",
		"session_id", sessionID,
		"record_id", recordID,
		"product_id", productID)
	s.audit(ctx, AuditLogParams{
		Action:    ActionResolve,
		SessionID: sessionID,
		RecordID:  recordID,
		ProductID: productID,
		Details:   map[string]any{"importedName": rec.ImportedName, "name": rec.Name},
	})
	return rec, nil
}

// Undo reverts the last resolution of a record.
func (s *Service) Undo(ctx context.Context, sessionID, recordID uuid.UUID) (ImportRecord, error) {
	var rec ImportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		var err error
		rec, err = sess.Undo(recordID)
		return err
	})
	if err != nil {
		return ImportRecord{}, err
	}

	s.logger.Info("resolution undone",
		"session_id", sessionID,
		"record_id", recordID)
	s.audit(ctx, AuditLogParams{
		Action:    ActionUndo,
		SessionID: sessionID,
		RecordID:  recordID,
	})
	return rec, nil
}

// AddRecord adds a matched record for a catalog product picked by the operator.
func (s *Service) AddRecord(ctx context.Context, sessionID uuid.UUID, productID string, quantity int, expiry *time.Time) (ImportRecord, error) {
	if err := ValidateManual(quantity, expiry); err != nil {
		return ImportRecord{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	product, err := s.catalog.GetProduct(callCtx, productID)
	cancel()
	if err != nil {
		return ImportRecord{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	if product == nil {
		return ImportRecord{}, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}

	var rec ImportRecord
	err = s.withSession(sessionID, func(sess *Session) error {
		var err error
		rec, err = sess.AddRecord(*product, quantity, expiry)
		return err
	})
	if err != nil {
		return ImportRecord{}, err
	}

	s.logger.Info("record added",
		"session_id", sessionID,
		"record_id", rec.ID,
		"product_id", productID,
		"quantity", quantity)
	s.audit(ctx, AuditLogParams{
		Action:       ActionRecordAdd,
		SessionID:    sessionID,
		RecordID:     rec.ID,
		ProductID:    productID,
		RowsAffected: 1,
		Details:      map[string]any{"quantity": quantity, "expiry": rec.ExpiryISO()},
	})
	return rec, nil
}

// RemoveRecord deletes a record from the session. There is no undo.
func (s *Service) RemoveRecord(ctx context.Context, sessionID, recordID uuid.UUID) error {
	var removed ImportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		rec, err := sess.Record(recordID)
		if err != nil {
			return err
		}
		removed = rec
		return sess.Remove(recordID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("record removed",
		"session_id", sessionID,
		"record_id", recordID,
		"status", string(removed.Status))
	s.audit(ctx, AuditLogParams{
		Action:       ActionRecordRemove,
		SessionID:    sessionID,
		RecordID:     recordID,
		RowsAffected: 1,
		Details: map[string]any{
			"barcode": removed.Barcode,
			"name":    removed.Name,
			"status":  removed.Status,
		},
	})
	return nil
}

// EditRecord replaces a record with a corrected row, validates it again and,
// when it passes, matches it against the catalog.
func (s *Service) EditRecord(ctx context.Context, sessionID, recordID uuid.UUID, raw RawRow) (ImportRecord, error) {
	rules := ValidationRules{}
	if raw.Get(ColCategory) != "" {
		if cats, err := s.ListCategories(ctx); err == nil {
			rules.Categories = cats
		}
	}

	var rec ImportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		before, err := sess.Record(recordID)
		if err != nil {
			return err
		}
		if _, err := sess.Edit(recordID, raw, rules); err != nil {
			return err
		}
		rec, err = s.matcher.MatchRecord(ctx, sess, recordID)
		if err != nil {
			return err
		}
		s.audit(ctx, AuditLogParams{
			Action:    ActionRecordEdit,
			SessionID: sessionID,
			RecordID:  recordID,
			Details: map[string]any{
				"previousStatus": before.Status,
				"status":         rec.Status,
			},
		})
		return nil
	})
	if err != nil {
		return ImportRecord{}, err
	}

	s.logger.Info("record edited",
		"session_id", sessionID,
		"record_id", recordID,
		"status", string(rec.Status))
	return rec, nil
}
