// Package dedup maintains the identity index over extracted products.
// Identity is the tuple (supplier, product URL, name, unit); the index never
// holds two live entries with the same identity, including across concurrent
// traversals and, when seeded, across runs.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"

	"github.com/donizo/material-scraper/internal/models"
)

// Status of one admission decision.
type Status int

const (
	Admitted Status = iota
	Duplicate
)

// Key is the canonical product identity.
type Key struct {
	Supplier string
	URL      string
	Name     string
	Unit     string
}

// KeyOf derives the identity key of a product.
func KeyOf(p *models.Product) Key {
	return Key{
		Supplier: p.Supplier,
		URL:      p.URL,
		Name:     p.Name,
		Unit:     p.Unit,
	}
}

// Hash returns a stable hex digest of the key, safe for use as an index
// member regardless of what characters the fields contain.
func (k Key) Hash() string {
	joined := strings.Join([]string{k.Supplier, k.URL, k.Name, k.Unit}, "\x1f")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// IndexStore is the identity index backing a Deduplicator. Add must be an
// atomic check-and-insert so that of two concurrent admissions with equal
// keys exactly one succeeds.
type IndexStore interface {
	// Add inserts the key and reports whether it was previously absent.
	Add(ctx context.Context, key string) (bool, error)
	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)
}

// MemoryIndex is the in-process index used within a single run.
type MemoryIndex struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{keys: make(map[string]struct{})}
}

func (m *MemoryIndex) Add(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *MemoryIndex) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys), nil
}

// Deduplicator decides keep/drop for each extracted product against the
// identity index. First seen wins; duplicates are dropped without merging.
type Deduplicator struct {
	index  IndexStore
	logger *slog.Logger
}

func New(index IndexStore, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		index:  index,
		logger: logger.With("component", "dedup"),
	}
}

// Admit registers the product's identity, returning Duplicate when an item
// with the same key is already live.
func (d *Deduplicator) Admit(ctx context.Context, p *models.Product) (Status, error) {
	added, err := d.index.Add(ctx, KeyOf(p).Hash())
	if err != nil {
		return Duplicate, err
	}
	if !added {
		return Duplicate, nil
	}
	return Admitted, nil
}

// Seed bulk-inserts a prior dataset into the index so a run dedups against
// history. Must be called before any Admit.
func (d *Deduplicator) Seed(ctx context.Context, products []models.Product) (int, error) {
	inserted := 0
	for i := range products {
		added, err := d.index.Add(ctx, KeyOf(&products[i]).Hash())
		if err != nil {
			return inserted, err
		}
		if added {
			inserted++
		}
	}
	d.logger.Info("identity index seeded", "items", len(products), "inserted", inserted)
	return inserted, nil
}
