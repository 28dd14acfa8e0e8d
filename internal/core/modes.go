package core

import (
	"fmt"
	"sort"
	"sync"
)

// Canonical column names of the import source.
const (
	ColBarcode      = "barcode"
	ColName         = "name"
	ColBrandName    = "brand_name"
	ColCategory     = "category"
	ColQuantity     = "quantity"
	ColExpiry       = "expiry"
	ColDosageAmount = "dosage_amount"
	ColDosageUnit   = "dosage_unit"
	ColPrescription = "prescription"
	ColDescription  = "description"
	ColSideEffects  = "side_effects"
)

// Mode keys.
const (
	ModeExisting       = "existing"
	ModeNewAndExisting = "new_and_existing"
)

// ImportMode describes one accepted spreadsheet shape.
type ImportMode struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Required []string `json:"required"` // columns that must be present in the header

	// AllowNew classifies unmatched rows as new products instead of invalid.
	AllowNew bool `json:"allowNew"`
}

var (
	modes   = make(map[string]ImportMode)
	modesMu sync.RWMutex
)

func init() {
	RegisterMode(ImportMode{
		Key:      ModeExisting,
		Label:    "Existing products only",
		Required: []string{ColBarcode, ColName, ColQuantity, ColExpiry},
	})
	RegisterMode(ImportMode{
		Key:   ModeNewAndExisting,
		Label: "New & existing products",
		Required: []string{
			ColBarcode, ColName, ColBrandName, ColCategory, ColQuantity, ColExpiry,
			ColDosageAmount, ColDosageUnit, ColPrescription, ColDescription, ColSideEffects,
		},
		AllowNew: true,
	})
}

// RegisterMode adds an import mode.
// Panics if a mode with the same key is already registered.
func RegisterMode(m ImportMode) {
	modesMu.Lock()
	defer modesMu.Unlock()

	if _, exists := modes[m.Key]; exists {
		panic(fmt.Sprintf("import mode already registered: %s", m.Key))
	}
	modes[m.Key] = m
}

// GetMode returns a mode by key.
func GetMode(key string) (ImportMode, error) {
	modesMu.RLock()
	defer modesMu.RUnlock()

	m, ok := modes[key]
	if !ok {
		return ImportMode{}, fmt.Errorf("%w: %q", ErrUnknownMode, key)
	}
	return m, nil
}

// Modes returns all registered modes sorted by key.
func Modes() []ImportMode {
	modesMu.RLock()
	defer modesMu.RUnlock()

	result := make([]ImportMode, 0, len(modes))
	for _, m := range modes {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}
