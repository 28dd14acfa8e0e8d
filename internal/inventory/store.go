// Package inventory writes committed import records and audit entries to
// PostgreSQL.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rxstock/internal/core"
)

// ErrDuplicateRecord is returned when a chunk contains a record that was
// already applied to stock.
var ErrDuplicateRecord = errors.New("import record already committed")

// ErrProductGone is returned when a matched product no longer exists.
var ErrProductGone = errors.New("catalog product no longer exists")

const addStockSQL = `UPDATE products
	SET current_stock = current_stock + $2, updated_at = now()
	WHERE id = $1::uuid`

const insertLotSQL = `INSERT INTO stock_lots (product_id, quantity, expiry, import_session_id, import_record_id)
	VALUES ($1::uuid, $2, $3, $4, $5)`

// upsertProductLotSQL creates the product (or adds to it when another
// session created the barcode first) and records the lot in one statement.
const upsertProductLotSQL = `WITH p AS (
	INSERT INTO products (barcode, name, brand_name, category_id, description, side_effects,
		dosage_amount, dosage_unit, prescription, current_stock)
	VALUES ($1, $2, $3, $4::uuid, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (barcode) DO UPDATE
		SET current_stock = products.current_stock + EXCLUDED.current_stock, updated_at = now()
	RETURNING id
)
INSERT INTO stock_lots (product_id, quantity, expiry, import_session_id, import_record_id)
SELECT p.id, $10, $11, $12, $13 FROM p`

// Store implements core.InventoryStore. Each chunk runs in its own
// transaction: either every item of the chunk lands or none does.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CommitBatch(ctx context.Context, sessionID uuid.UUID, items []core.CommitItem) error {
	if len(items) == 0 {
		return nil
	}

	batch, err := buildBatch(sessionID, items)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return readBatch(tx.SendBatch(ctx, batch), items)
	})
	if err != nil {
		return fmt.Errorf("commit %d records: %w", len(items), err)
	}
	return nil
}

// batchResults is the part of pgx.BatchResults readBatch uses.
type batchResults interface {
	Exec() (pgconn.CommandTag, error)
	Close() error
}

// readBatch consumes results in the order buildBatch queued them and closes
// br. A matched item whose product row is gone fails the chunk.
func readBatch(br batchResults, items []core.CommitItem) error {
	for i, it := range items {
		if it.CatalogProductID != "" {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return itemError(it, err)
			}
			if tag.RowsAffected() == 0 {
				br.Close()
				return fmt.Errorf("record %d (%s): %w", i, it.Barcode, ErrProductGone)
			}
		}
		if _, err := br.Exec(); err != nil {
			br.Close()
			return itemError(it, err)
		}
	}
	return br.Close()
}

// buildBatch queues one statement pair per matched item and one combined
// statement per new item, in item order.
func buildBatch(sessionID uuid.UUID, items []core.CommitItem) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, it := range items {
		expiry, err := toPgDate(it.Expiry)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", it.RecordID, err)
		}

		if it.CatalogProductID != "" {
			batch.Queue(addStockSQL, it.CatalogProductID, it.Quantity)
			batch.Queue(insertLotSQL, it.CatalogProductID, it.Quantity, expiry, sessionID, it.RecordID)
			continue
		}

		batch.Queue(upsertProductLotSQL,
			it.Barcode, it.Name, toPgText(it.BrandName), toPgText(it.CategoryID),
			toPgText(it.Description), toPgText(it.SideEffects),
			toPgText(it.DosageAmount), toPgText(it.DosageUnit), it.Prescription,
			it.Quantity, expiry, sessionID, it.RecordID,
		)
	}
	return batch, nil
}

func itemError(it core.CommitItem, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "stock_lots_import_record_id_key" {
		return fmt.Errorf("record %s: %w", it.RecordID, ErrDuplicateRecord)
	}
	return fmt.Errorf("record %s (%s): %w", it.RecordID, it.Barcode, err)
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// toPgDate parses an ISO date; empty means no expiry.
func toPgDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("invalid expiry %q", s)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}
