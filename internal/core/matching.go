package core

// matching.go classifies validated records against the catalog.
//
// Matching is two passes per record:
//  1. Exact: a catalog product with the same barcode wins outright.
//  2. Fuzzy: products returned by a name/brand search are scored by
//     equality and containment of name and brand, then ranked.
//
// A failed catalog call only affects the record being matched.

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Score weights, in tenths, so sums stay exact.
const (
	nameEqualPoints     = 5
	nameContainsPoints  = 3
	brandEqualPoints    = 3
	brandContainsPoints = 2

	// MaxSimilarity is the highest score the fuzzy pass can produce.
	MaxSimilarity = float64(nameEqualPoints+brandEqualPoints) / 10

	DefaultCandidateLimit = 25
	DefaultCallTimeout    = 15 * time.Second
)

var (
	// "250mg", "2.5ml", "10%"
	strengthToken = regexp.MustCompile(`^\d+(\.\d+)?(mcg|mg|kg|g|ml|l|iu|units?|meq|mmol|%)$`)
	numberToken   = regexp.MustCompile(`^\d+(\.\d+)?$`)
	unitToken     = regexp.MustCompile(`^(mcg|mg|kg|g|ml|l|iu|units?|meq|mmol|%)$`)
)

// MatcherOptions configures a Matcher. Zero values use the defaults.
type MatcherOptions struct {
	CallTimeout    time.Duration
	CandidateLimit int
	Logger         *slog.Logger
}

// Matcher runs the exact and fuzzy passes against a Catalog.
type Matcher struct {
	catalog        Catalog
	callTimeout    time.Duration
	candidateLimit int
	logger         *slog.Logger
}

func NewMatcher(catalog Catalog, opts MatcherOptions) *Matcher {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Matcher{
		catalog:        catalog,
		callTimeout:    opts.CallTimeout,
		candidateLimit: opts.CandidateLimit,
		logger:         opts.Logger,
	}
}

// MatchStats counts the outcome of a MatchAll run.
type MatchStats struct {
	Matched        int `json:"matched"`
	Similar        int `json:"similar"`
	New            int `json:"new"`
	Invalid        int `json:"invalid"`
	LookupFailures int `json:"lookupFailures"`
}

func (st *MatchStats) add(rec *ImportRecord, lookupErr error) {
	switch rec.Status {
	case StatusMatched:
		st.Matched++
	case StatusSimilar:
		st.Similar++
	case StatusNew:
		st.New++
	case StatusInvalid:
		st.Invalid++
	}
	if lookupErr != nil {
		st.LookupFailures++
	}
}

// Match classifies one pending record in place. Records in any other status
// are left untouched. A catalog failure marks the record invalid and is
// returned as a *MatchLookupError for logging; it is never fatal.
func (m *Matcher) Match(ctx context.Context, rec *ImportRecord, mode ImportMode) error {
	if rec.Status != StatusPending {
		return nil
	}

	hit, err := m.searchByBarcode(ctx, rec.Barcode)
	if err != nil {
		return m.lookupFailed(rec, err)
	}
	if hit != nil {
		return markMatched(rec, *hit)
	}

	products, err := m.searchByNameBrand(ctx, rec.Name, rec.BrandName)
	if err != nil {
		return m.lookupFailed(rec, err)
	}

	candidates := RankCandidates(rec.Name, rec.BrandName, products)
	if len(candidates) > m.candidateLimit {
		candidates = candidates[:m.candidateLimit]
	}

	switch {
	case len(candidates) > 0:
		return markSimilar(rec, candidates)
	case mode.AllowNew:
		return markNew(rec)
	default:
		return markInvalid(rec, "no matching catalog product", nil)
	}
}

// MatchAll classifies every pending record of the session in order. It stops
// early only when ctx is done; the remaining records stay pending.
func (m *Matcher) MatchAll(ctx context.Context, sess *Session) (MatchStats, error) {
	var stats MatchStats
	for _, rec := range sess.records {
		if rec.Status != StatusPending {
			if rec.Status == StatusInvalid {
				stats.Invalid++
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		err := m.Match(ctx, rec, sess.Mode)
		stats.add(rec, err)
		if err != nil {
			m.logger.Warn("catalog lookup failed",
				"session_id", sess.ID,
				"record_id", rec.ID,
				"error", err)
		}
	}
	sess.touch()
	return stats, nil
}

// MatchRecord classifies a single record of the session, typically after an edit.
func (m *Matcher) MatchRecord(ctx context.Context, sess *Session, id uuid.UUID) (ImportRecord, error) {
	rec, err := sess.get(id)
	if err != nil {
		return ImportRecord{}, err
	}
	if err := m.Match(ctx, rec, sess.Mode); err != nil {
		m.logger.Warn("catalog lookup failed",
			"session_id", sess.ID,
			"record_id", id,
			"error", err)
	}
	sess.touch()
	return rec.Clone(), nil
}

func (m *Matcher) searchByBarcode(ctx context.Context, barcode string) (*CatalogProduct, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.catalog.SearchByBarcode(callCtx, barcode)
}

func (m *Matcher) searchByNameBrand(ctx context.Context, name, brand string) ([]CatalogProduct, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.catalog.SearchByNameBrand(callCtx, name, brand)
}

func (m *Matcher) lookupFailed(rec *ImportRecord, err error) error {
	lerr := &MatchLookupError{Barcode: rec.Barcode, Err: err}
	if markErr := markInvalid(rec, "", lerr); markErr != nil {
		return markErr
	}
	return lerr
}

// RankCandidates scores products against an imported name and brand and
// returns them in descending order of similarity. Equal scores keep the
// order the catalog returned them in.
func RankCandidates(name, brand string, products []CatalogProduct) []Candidate {
	if len(products) == 0 {
		return nil
	}
	out := make([]Candidate, len(products))
	for i, p := range products {
		out[i] = Candidate{Product: p, Similarity: Similarity(name, brand, p)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// Similarity scores a catalog product against an imported name and brand.
// The result is in [0, MaxSimilarity].
func Similarity(name, brand string, p CatalogProduct) float64 {
	points := nameScore(name, p.Name)

	a, b := foldSpace(brand), foldSpace(p.BrandName)
	switch {
	case a == "" || b == "":
	case a == b:
		points += brandEqualPoints
	case strings.Contains(a, b) || strings.Contains(b, a):
		points += brandContainsPoints
	}

	return float64(points) / 10
}

// nameScore compares names as written. Strength tokens are ignored only
// when one side carries a strength and the other does not, so "Amoxicillin"
// equals "Amoxicillin 250mg" but 500mg never equals 250mg.
func nameScore(imported, catalog string) int {
	a, b := foldSpace(imported), foldSpace(catalog)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return nameEqualPoints
	}
	sa, strippedA := normalizeName(imported)
	sb, strippedB := normalizeName(catalog)
	if strippedA != strippedB {
		a, b = sa, sb
		if a == b {
			return nameEqualPoints
		}
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return nameContainsPoints
	}
	return 0
}

// BaseName is a product name lower-cased with its strength tokens removed,
// e.g. "amoxicillin" for "Amoxicillin 250 mg".
func BaseName(name string) string {
	base, _ := normalizeName(name)
	return base
}

// normalizeName lower-cases, collapses whitespace and drops strength tokens.
// It reports whether anything was dropped. A name made only of strength
// tokens is kept as is.
func normalizeName(s string) (string, bool) {
	fields := strings.Fields(strings.ToLower(s))
	kept := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strengthToken.MatchString(f) {
			continue
		}
		if numberToken.MatchString(f) && i+1 < len(fields) && unitToken.MatchString(fields[i+1]) {
			i++
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 || len(kept) == len(fields) {
		return strings.Join(fields, " "), false
	}
	return strings.Join(kept, " "), true
}

func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
