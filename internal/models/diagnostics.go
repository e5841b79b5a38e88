package models

import (
	"time"

	"github.com/google/uuid"
)

// Diagnostic reasons emitted during a run.
const (
	ReasonMissingRequired = "missing required field"
	ReasonPartial         = "partial extraction"
	ReasonPriceParse      = "price parse failure"
	ReasonDuplicate       = "duplicate"
	ReasonCardFault       = "card fault"
	ReasonFetchFailed     = "fetch failed"
	ReasonNoProgress      = "no progress guard tripped"
	ReasonTargetFault     = "target fault"
)

// Diagnostic explains why an item was skipped or degraded.
type Diagnostic struct {
	ID       string   `json:"id"`
	Supplier string   `json:"supplier"`
	Category string   `json:"category"`
	Item     string   `json:"item,omitempty"`
	Reason   string   `json:"reason"`
	Fields   []string `json:"fields,omitempty"`
	At       int64    `json:"at"`
}

// NewDiagnostic records a skip/degrade event for one supplier/category.
func NewDiagnostic(supplier, category, item, reason string, fields ...string) Diagnostic {
	return Diagnostic{
		ID:       uuid.NewString(),
		Supplier: supplier,
		Category: category,
		Item:     item,
		Reason:   reason,
		Fields:   fields,
		At:       time.Now().Unix(),
	}
}

// RunResult aggregates everything one orchestrated run produced.
type RunResult struct {
	RunID         string       `json:"run_id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Products      []Product    `json:"products"`
	Diagnostics   []Diagnostic `json:"diagnostics"`
	Admitted      int          `json:"admitted"`
	Duplicates    int          `json:"duplicates"`
	Skipped       int          `json:"skipped"`
	PagesFetched  int          `json:"pages_fetched"`
	FailedTargets []string     `json:"failed_targets,omitempty"`
	Cancelled     bool         `json:"cancelled,omitempty"`
}
