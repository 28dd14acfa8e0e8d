package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the classification of an import record.
type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusMatched RecordStatus = "matched"
	StatusSimilar RecordStatus = "similar"
	StatusNew     RecordStatus = "new"
	StatusInvalid RecordStatus = "invalid"
)

// AllStatuses lists every status in display order.
var AllStatuses = []RecordStatus{StatusPending, StatusMatched, StatusSimilar, StatusNew, StatusInvalid}

// Valid reports whether s is one of AllStatuses.
func (s RecordStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Category is a product category known to the catalog.
type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix,omitempty"`
}

// CatalogProduct is an existing inventory item. Read-only to this package.
type CatalogProduct struct {
	ID           string `json:"id"`
	Barcode      string `json:"barcode"`
	Name         string `json:"name"`
	BrandName    string `json:"brandName,omitempty"`
	CategoryID   string `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	DosageAmount string `json:"dosageAmount,omitempty"`
	DosageUnit   string `json:"dosageUnit,omitempty"`
	CurrentStock int    `json:"currentStock"`
}

// Candidate is a catalog product offered for a similar record.
type Candidate struct {
	Product    CatalogProduct `json:"product"`
	Similarity float64        `json:"similarity"`
}

// ImportRecord is one row being reconciled.
type ImportRecord struct {
	ID   uuid.UUID `json:"id"`
	Line int       `json:"line,omitempty"` // 1-based data row in the source file

	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	BrandName string `json:"brandName,omitempty"`

	// Text as it appeared in the import, kept after a match overwrites Name/BrandName.
	ImportedName  string `json:"importedName,omitempty"`
	ImportedBrand string `json:"importedBrand,omitempty"`

	CategoryName string    `json:"categoryName,omitempty"`
	Category     *Category `json:"category,omitempty"`

	Quantity     int        `json:"quantity"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	DosageAmount string     `json:"dosageAmount,omitempty"`
	DosageUnit   string     `json:"dosageUnit,omitempty"`
	Prescription bool       `json:"prescription"`
	Description  string     `json:"description,omitempty"`
	SideEffects  string     `json:"sideEffects,omitempty"`

	Status           RecordStatus    `json:"status"`
	MatchedProduct   *CatalogProduct `json:"matchedProduct,omitempty"`
	CandidateMatches []Candidate     `json:"candidateMatches,omitempty"`
	ValidationErrors []string        `json:"validationErrors,omitempty"`
	LookupError      string          `json:"lookupError,omitempty"`

	Manual bool `json:"manual,omitempty"`
}

// ExpiryISO returns the expiry as YYYY-MM-DD, or "" when unset.
func (r *ImportRecord) ExpiryISO() string {
	if r.Expiry == nil {
		return ""
	}
	return r.Expiry.Format(isoDateLayout)
}

// Clone returns a deep copy. Undo snapshots rely on it sharing no memory with r.
func (r *ImportRecord) Clone() ImportRecord {
	c := *r
	if r.Category != nil {
		cat := *r.Category
		c.Category = &cat
	}
	if r.Expiry != nil {
		e := *r.Expiry
		c.Expiry = &e
	}
	if r.MatchedProduct != nil {
		p := *r.MatchedProduct
		c.MatchedProduct = &p
	}
	if r.CandidateMatches != nil {
		c.CandidateMatches = make([]Candidate, len(r.CandidateMatches))
		copy(c.CandidateMatches, r.CandidateMatches)
	}
	if r.ValidationErrors != nil {
		c.ValidationErrors = make([]string, len(r.ValidationErrors))
		copy(c.ValidationErrors, r.ValidationErrors)
	}
	return c
}

// UndoEntry holds the state of a record before a resolution.
type UndoEntry struct {
	RecordID uuid.UUID
	Previous ImportRecord
}

// ImportProgress reports commit progress in records.
type ImportProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Current * 100) / p.Total
}

// ProgressCallback is called after every committed chunk.
type ProgressCallback func(ImportProgress)

// CommitItem is the payload submitted to the inventory store for one record.
type CommitItem struct {
	RecordID         uuid.UUID `json:"recordId"`
	CatalogProductID string    `json:"catalogProductId,omitempty"` // empty for new products
	Barcode          string    `json:"barcode"`
	Name             string    `json:"name"`
	BrandName        string    `json:"brandName,omitempty"`
	Quantity         int       `json:"quantity"`
	Expiry           string    `json:"expiry,omitempty"` // ISO date
	CategoryID       string    `json:"categoryId,omitempty"`
	Description      string    `json:"description,omitempty"`
	SideEffects      string    `json:"sideEffects,omitempty"`
	DosageAmount     string    `json:"dosageAmount,omitempty"`
	DosageUnit       string    `json:"dosageUnit,omitempty"`
	Prescription     bool      `json:"prescription"`
}

// Catalog is the read side of the product catalog.
type Catalog interface {
	// SearchByBarcode returns nil, nil when no product has the barcode.
	SearchByBarcode(ctx context.Context, barcode string) (*CatalogProduct, error)
	SearchByNameBrand(ctx context.Context, name, brand string) ([]CatalogProduct, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, id string) (*CatalogProduct, error)
}

// InventoryStore receives committed chunks. A chunk is applied atomically or not at all.
type InventoryStore interface {
	CommitBatch(ctx context.Context, sessionID uuid.UUID, items []CommitItem) error
}

// CommitEvent summarizes a finished commit for downstream consumers.
type CommitEvent struct {
	SessionID    uuid.UUID `json:"sessionId"`
	Mode         string    `json:"mode"`
	FileName     string    `json:"fileName,omitempty"`
	Committed    int       `json:"committed"`
	Failed       int       `json:"failed"`
	NotAttempted int       `json:"notAttempted"`
	Aborted      bool      `json:"aborted"`
	Cancelled    bool      `json:"cancelled"`
	Error        string    `json:"error,omitempty"`
	CompletedAt  time.Time `json:"completedAt"`
}

// EventPublisher announces commit outcomes.
type EventPublisher interface {
	PublishCommit(ctx context.Context, event CommitEvent) error
}

// SessionSummary counts records by status.
type SessionSummary struct {
	SessionID uuid.UUID            `json:"sessionId"`
	Mode      string               `json:"mode"`
	FileName  string               `json:"fileName,omitempty"`
	Total     int                  `json:"total"`
	ByStatus  map[RecordStatus]int `json:"byStatus"`
	Undoable  int                  `json:"undoable"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}
