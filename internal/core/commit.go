package core

// commit.go submits the eligible records of a session to the inventory
// store in fixed-size chunks.
//
// Chunks go out one at a time, in record order. A chunk that succeeds is
// removed from the session straight away, so a later failure never puts
// committed stock back in front of the operator. The first failed chunk
// stops the run: nothing is retried and later chunks are not attempted.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is the number of records per CommitBatch call.
const DefaultChunkSize = 10

// CommitPlan describes what a commit would do, before it starts.
type CommitPlan struct {
	Eligible        int                  `json:"eligible"`
	Skipped         int                  `json:"skipped"`
	SkippedByStatus map[RecordStatus]int `json:"skippedByStatus"`
	Chunks          int                  `json:"chunks"`
	ChunkSize       int                  `json:"chunkSize"`
}

// CommitOptions controls one commit run.
type CommitOptions struct {
	ChunkSize          int
	AcknowledgeSkipped bool
	CallTimeout        time.Duration
	OnProgress         ProgressCallback
}

// CommitResult reports exactly which records were committed.
type CommitResult struct {
	Committed    []uuid.UUID `json:"committed"`
	Failed       []uuid.UUID `json:"failed"`
	NotAttempted []uuid.UUID `json:"notAttempted"`
	Chunks       int         `json:"chunks"` // CommitBatch calls issued
	Aborted      bool        `json:"aborted"`
	Cancelled    bool        `json:"cancelled"`
}

// Complete reports whether every eligible record was committed.
func (r CommitResult) Complete() bool {
	return !r.Aborted && len(r.Failed) == 0 && len(r.NotAttempted) == 0
}

// Committer runs the commit pipeline against an InventoryStore.
type Committer struct {
	store  InventoryStore
	logger *slog.Logger
}

func NewCommitter(store InventoryStore, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: store, logger: logger}
}

// Plan counts eligible and skipped records without touching the session.
func (c *Committer) Plan(sess *Session, chunkSize int) CommitPlan {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	plan := CommitPlan{
		SkippedByStatus: make(map[RecordStatus]int),
		ChunkSize:       chunkSize,
	}
	for _, r := range sess.records {
		if Eligible(r.Status) {
			plan.Eligible++
		} else {
			plan.Skipped++
			plan.SkippedByStatus[r.Status]++
		}
	}
	plan.Chunks = (plan.Eligible + chunkSize - 1) / chunkSize
	return plan
}

// Commit submits every eligible record. Skipped records must be
// acknowledged first or ErrSkippedNotAcknowledged is returned before any
// I/O. On a chunk failure the partial result is returned together with a
// *CommitBatchError; on cancellation the result has Cancelled set.
func (c *Committer) Commit(ctx context.Context, sess *Session, opts CommitOptions) (CommitResult, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	plan := c.Plan(sess, opts.ChunkSize)
	if plan.Skipped > 0 && !opts.AcknowledgeSkipped {
		return CommitResult{}, fmt.Errorf("%d record(s) would be skipped: %w", plan.Skipped, ErrSkippedNotAcknowledged)
	}

	eligible := make([]*ImportRecord, 0, plan.Eligible)
	for _, r := range sess.records {
		if Eligible(r.Status) {
			eligible = append(eligible, r)
		}
	}

	var result CommitResult
	sess.Progress = ImportProgress{Current: 0, Total: len(eligible)}
	report(opts.OnProgress, sess.Progress)

	for k, start := 0, 0; start < len(eligible); k, start = k+1, start+opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(eligible))
		chunk := eligible[start:end]

		if err := ctx.Err(); err != nil {
			result.Aborted = true
			result.NotAttempted = recordIDs(eligible[start:])
			if errors.Is(err, context.DeadlineExceeded) {
				c.logger.Warn("commit timed out",
					"session_id", sess.ID,
					"chunk", k+1,
					"committed", len(result.Committed))
				return result, fmt.Errorf("commit timed out before chunk %d: %w", k+1, err)
			}
			result.Cancelled = true
			c.logger.Info("commit cancelled",
				"session_id", sess.ID,
				"chunk", k+1,
				"committed", len(result.Committed))
			return result, fmt.Errorf("commit cancelled before chunk %d: %w", k+1, err)
		}

		ids := recordIDs(chunk)
		err := c.submit(ctx, sess.ID, chunk, opts.CallTimeout)
		result.Chunks++

		if err != nil {
			result.Aborted = true
			result.Cancelled = errors.Is(ctx.Err(), context.Canceled)
			result.Failed = ids
			result.NotAttempted = recordIDs(eligible[end:])
			c.logger.Error("commit chunk failed",
				"session_id", sess.ID,
				"chunk", k+1,
				"records", len(chunk),
				"error", err)
			return result, &CommitBatchError{Chunk: k, Records: len(chunk), Err: err}
		}

		sess.removeMany(ids)
		result.Committed = append(result.Committed, ids...)
		sess.Progress.Current += len(chunk)
		report(opts.OnProgress, sess.Progress)

		c.logger.Debug("commit chunk done",
			"session_id", sess.ID,
			"chunk", k+1,
			"records", len(chunk),
			"progress", sess.Progress.Current)
	}

	return result, nil
}

func (c *Committer) submit(ctx context.Context, sessionID uuid.UUID, chunk []*ImportRecord, timeout time.Duration) error {
	items := make([]CommitItem, len(chunk))
	for i, r := range chunk {
		items[i] = ToCommitItem(r)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.store.CommitBatch(callCtx, sessionID, items)
}

// ToCommitItem builds the store payload for a record.
func ToCommitItem(r *ImportRecord) CommitItem {
	item := CommitItem{
		RecordID:     r.ID,
		Barcode:      r.Barcode,
		Name:         r.Name,
		BrandName:    r.BrandName,
		Quantity:     r.Quantity,
		Expiry:       r.ExpiryISO(),
		Description:  r.Description,
		SideEffects:  r.SideEffects,
		DosageAmount: r.DosageAmount,
		DosageUnit:   r.DosageUnit,
		Prescription: r.Prescription,
	}
	if r.MatchedProduct != nil {
		item.CatalogProductID = r.MatchedProduct.ID
	}
	if r.Category != nil {
		item.CategoryID = r.Category.ID
	}
	return item
}

func recordIDs(recs []*ImportRecord) []uuid.UUID {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func report(cb ProgressCallback, p ImportProgress) {
	if cb != nil {
		cb(p)
	}
}
