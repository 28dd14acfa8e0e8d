package core

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// fakeCatalog is an in-memory Catalog. Name search returns products whose
// name contains the query (or the reverse) or whose brand equals the brand.
type fakeCatalog struct {
	mu         sync.Mutex
	products   []CatalogProduct
	categories []Category
	barcodeErr map[string]error
	searchErr  error
	categErr   error
	lookups    int
}

func (f *fakeCatalog) SearchByBarcode(ctx context.Context, barcode string) (*CatalogProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if err := f.barcodeErr[barcode]; err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.Barcode == barcode {
			hit := p
			return &hit, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) SearchByNameBrand(ctx context.Context, name, brand string) ([]CatalogProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	q := strings.ToLower(name)
	var out []CatalogProduct
	for _, p := range f.products {
		pn := strings.ToLower(p.Name)
		if (q != "" && (strings.Contains(pn, q) || strings.Contains(q, pn))) ||
			(brand != "" && strings.EqualFold(p.BrandName, brand)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]Category, error) {
	if f.categErr != nil {
		return nil, f.categErr
	}
	return f.categories, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*CatalogProduct, error) {
	for _, p := range f.products {
		if p.ID == id {
			hit := p
			return &hit, nil
		}
	}
	return nil, nil
}

// fakeStore records every CommitBatch call and can fail a chosen call.
type fakeStore struct {
	mu      sync.Mutex
	calls   [][]CommitItem
	failOn  int // 1-based call to fail; 0 never fails
	failErr error

	// gate, when set, blocks each call until a value is received.
	gate chan struct{}

	// panicWith, when set, makes every call panic with it.
	panicWith any

	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (f *fakeStore) CommitBatch(ctx context.Context, sessionID uuid.UUID, items []CommitItem) error {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]CommitItem, len(items))
	copy(cp, items)
	f.calls = append(f.calls, cp)
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return f.failErr
	}
	return nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditLogParams
}

func (f *fakeAudit) LogAudit(ctx context.Context, p AuditLogParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, p)
	return nil
}

func (f *fakeAudit) actions() []AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuditAction, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []CommitEvent
}

func (f *fakeEvents) PublishCommit(ctx context.Context, ev CommitEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// row builds a RawRow from column/value pairs.
func row(line int, kv ...string) RawRow {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return RawRow{Line: line, Values: values}
}

// validRow is an existing-mode row with the given barcode and name.
func validRow(line int, barcode, name string) RawRow {
	return row(line, ColBarcode, barcode, ColName, name, ColQuantity, "10", ColExpiry, "12/31/2026")
}
