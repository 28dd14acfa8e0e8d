package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rxstock/internal/core"
)

func TestBuildBatch(t *testing.T) {
	sessionID := uuid.New()
	matched := core.CommitItem{RecordID: uuid.New(), CatalogProductID: uuid.NewString(), Barcode: "111", Quantity: 5, Expiry: "2027-06-30"}
	fresh := core.CommitItem{RecordID: uuid.New(), Barcode: "222", Name: "Ibuprofen 200mg", Quantity: 12, Prescription: true}

	batch, err := buildBatch(sessionID, []core.CommitItem{matched, fresh})
	require.NoError(t, err)
	require.Equal(t, 3, batch.Len())

	q := batch.QueuedQueries
	assert.Equal(t, addStockSQL, q[0].SQL)
	assert.Equal(t, []any{matched.CatalogProductID, 5}, q[0].Arguments)

	assert.Equal(t, insertLotSQL, q[1].SQL)
	assert.Equal(t, sessionID, q[1].Arguments[3])
	assert.Equal(t, matched.RecordID, q[1].Arguments[4])

	assert.Equal(t, upsertProductLotSQL, q[2].SQL)
	args := q[2].Arguments
	require.Len(t, args, 13)
	assert.Equal(t, "222", args[0])
	assert.Equal(t, true, args[8])
	assert.Equal(t, 12, args[9])
	assert.Equal(t, fresh.RecordID, args[12])
}

func TestBuildBatch_BadExpiry(t *testing.T) {
	_, err := buildBatch(uuid.New(), []core.CommitItem{{RecordID: uuid.New(), Barcode: "1", Quantity: 1, Expiry: "30/06/2027"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expiry")
}

func TestToPgDate(t *testing.T) {
	d, err := toPgDate("")
	require.NoError(t, err)
	assert.False(t, d.Valid)

	d, err = toPgDate("2026-02-28")
	require.NoError(t, err)
	assert.True(t, d.Valid)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d.Time)
}

func TestToPgText(t *testing.T) {
	assert.False(t, toPgText("").Valid)
	assert.Equal(t, "x", toPgText("x").String)
}

func TestItemError(t *testing.T) {
	it := core.CommitItem{RecordID: uuid.New(), Barcode: "111"}

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "stock_lots_import_record_id_key"}
	assert.ErrorIs(t, itemError(it, dup), ErrDuplicateRecord)

	other := &pgconn.PgError{Code: "23514", ConstraintName: "products_current_stock_check"}
	err := itemError(it, other)
	assert.False(t, errors.Is(err, ErrDuplicateRecord))
	assert.Contains(t, err.Error(), "111")
}

// scriptedResults replays one command tag or error per Exec.
type scriptedResults struct {
	tags   []string
	errs   map[int]error
	execs  int
	closed bool
}

func (r *scriptedResults) Exec() (pgconn.CommandTag, error) {
	i := r.execs
	r.execs++
	if err := r.errs[i]; err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag(r.tags[i]), nil
}

func (r *scriptedResults) Close() error {
	r.closed = true
	return nil
}

func TestReadBatch(t *testing.T) {
	matched := core.CommitItem{RecordID: uuid.New(), CatalogProductID: uuid.NewString(), Barcode: "111", Quantity: 1}
	fresh := core.CommitItem{RecordID: uuid.New(), Barcode: "222", Quantity: 1}

	t.Run("all applied", func(t *testing.T) {
		br := &scriptedResults{tags: []string{"UPDATE 1", "INSERT 0 1", "INSERT 0 1"}}
		require.NoError(t, readBatch(br, []core.CommitItem{matched, fresh}))
		assert.Equal(t, 3, br.execs)
		assert.True(t, br.closed)
	})

	t.Run("matched product deleted", func(t *testing.T) {
		br := &scriptedResults{tags: []string{"UPDATE 0"}}
		err := readBatch(br, []core.CommitItem{matched, fresh})
		assert.ErrorIs(t, err, ErrProductGone)
		assert.Contains(t, err.Error(), "111")
		assert.Equal(t, 1, br.execs)
		assert.True(t, br.closed)
	})

	t.Run("duplicate lot", func(t *testing.T) {
		dup := &pgconn.PgError{Code: "23505", ConstraintName: "stock_lots_import_record_id_key"}
		br := &scriptedResults{tags: []string{"INSERT 0 1", "UPDATE 1", ""}, errs: map[int]error{2: dup}}
		err := readBatch(br, []core.CommitItem{fresh, matched})
		assert.ErrorIs(t, err, ErrDuplicateRecord)
		assert.Equal(t, 3, br.execs)
		assert.True(t, br.closed)
	})
}
