package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// PagingMode selects the traversal strategy for a category listing.
type PagingMode string

const (
	ModePaged          PagingMode = "pagination"
	ModeLoadMore       PagingMode = "load_more"
	ModeInfiniteScroll PagingMode = "infinite_scroll"
	ModeNone           PagingMode = "none"
)

// Paging configures how a category listing is traversed.
type Paging struct {
	Mode           PagingMode `yaml:"mode"`
	NextButton     string     `yaml:"next_button"`
	LoadMoreButton string     `yaml:"load_more_button"`
	MaxPages       int        `yaml:"max_pages"`
	NoProgressCap  int        `yaml:"no_progress_cap"`
	ScrollSteps    int        `yaml:"scroll_steps"`
	ScrollWaitMs   int        `yaml:"scroll_wait_ms"`
}

// Selectors holds the card locator plus ordered per-field selector candidates.
// The first candidate producing a non-blank value wins.
type Selectors struct {
	Card     string   `yaml:"card"`
	Name     []string `yaml:"name"`
	Price    []string `yaml:"price"`
	Currency []string `yaml:"currency"`
	Brand    []string `yaml:"brand"`
	Unit     []string `yaml:"unit"`
	Image    []string `yaml:"image"`
	Link     []string `yaml:"link"`
}

// Category is one listing page to traverse within a supplier site.
type Category struct {
	Name      string    `yaml:"name"`
	URL       string    `yaml:"url"`
	Selectors Selectors `yaml:"selectors"`
	Paging    Paging    `yaml:"paging"`
}

// Supplier groups the categories scraped from one site.
type Supplier struct {
	Supplier   string     `yaml:"supplier"`
	BaseURL    string     `yaml:"base_url"`
	Categories []Category `yaml:"categories"`
}

// File is the root of the YAML supplier definition.
type File struct {
	Headless  *bool      `yaml:"headless"`
	UserAgent string     `yaml:"user_agent"`
	Suppliers []Supplier `yaml:"suppliers"`
}

// Target is one supplier/category unit of work, immutable for the run.
type Target struct {
	Supplier string
	BaseURL  string
	Category Category
}

// Built-in selector fallbacks, tried after any configured candidates.
var (
	nameHints = []string{
		"[data-test-id='product-tile-title']",
		"[data-test-id='product-title']",
		"h3",
		".product-title",
		".title",
		"a[title]",
	}
	priceHints = []string{
		"[data-test-id='price']",
		"[data-test-id='price-first-end-currency']",
		".price",
		".product-price",
		".money",
	}
	brandHints = []string{
		"[data-test-id='brand']",
		"[data-test-id='manufacturer']",
		".product-brand",
		".brand",
	}
	unitHints = []string{
		"[data-test-id*='unit']",
		"[data-test-id*='pack']",
		".unit",
		".pack-size",
		".volume",
		".contenance",
		".size",
	}
	imageHints = []string{
		"img[src]",
		"img[data-srcset]",
		"img[srcset]",
		".product-image img",
		".thumbnail img",
		".product-card img",
		"img[data-src]",
		"img[data-original]",
	}
	linkHints = []string{
		"a[href*='/p/']",
		"a[href*='-pr']",
		"a[href]",
	}
)

// LoadSuppliers reads, defaults, and validates the YAML supplier definition.
// Any schema error here aborts the whole run before a single fetch.
func LoadSuppliers(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supplier config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse supplier config: %w", err)
	}

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	for si := range f.Suppliers {
		for ci := range f.Suppliers[si].Categories {
			c := &f.Suppliers[si].Categories[ci]
			if c.Paging.Mode == "" {
				c.Paging.Mode = ModeNone
			}
			if c.Paging.MaxPages == 0 {
				c.Paging.MaxPages = 12
			}
			if c.Paging.NoProgressCap == 0 {
				c.Paging.NoProgressCap = 3
			}
			if c.Paging.ScrollSteps == 0 {
				c.Paging.ScrollSteps = 25
			}
			if c.Paging.ScrollWaitMs == 0 {
				c.Paging.ScrollWaitMs = 400
			}
			sel := &c.Selectors
			sel.Name = append(sel.Name, nameHints...)
			sel.Price = append(sel.Price, priceHints...)
			sel.Brand = append(sel.Brand, brandHints...)
			sel.Unit = append(sel.Unit, unitHints...)
			sel.Image = append(sel.Image, imageHints...)
			sel.Link = append(sel.Link, linkHints...)
		}
	}
}

// Validate checks the supplier definition schema. Failures here are fatal
// for the run, unlike per-item extraction failures which never are.
func (f *File) Validate() error {
	if len(f.Suppliers) == 0 {
		return fmt.Errorf("supplier config: no suppliers defined")
	}
	for _, s := range f.Suppliers {
		if s.Supplier == "" {
			return fmt.Errorf("supplier config: supplier name is required")
		}
		if _, err := parseBase(s.BaseURL); err != nil {
			return fmt.Errorf("supplier %s: %w", s.Supplier, err)
		}
		if len(s.Categories) == 0 {
			return fmt.Errorf("supplier %s: no categories defined", s.Supplier)
		}
		for _, c := range s.Categories {
			if c.Name == "" {
				return fmt.Errorf("supplier %s: category name is required", s.Supplier)
			}
			if c.URL == "" {
				return fmt.Errorf("supplier %s, category %s: url is required", s.Supplier, c.Name)
			}
			if c.Selectors.Card == "" {
				return fmt.Errorf("supplier %s, category %s: card selector is required", s.Supplier, c.Name)
			}
			switch c.Paging.Mode {
			case ModePaged:
				if c.Paging.NextButton == "" {
					return fmt.Errorf("supplier %s, category %s: pagination mode requires next_button", s.Supplier, c.Name)
				}
			case ModeLoadMore:
				if c.Paging.LoadMoreButton == "" {
					return fmt.Errorf("supplier %s, category %s: load_more mode requires load_more_button", s.Supplier, c.Name)
				}
			case ModeInfiniteScroll, ModeNone:
			default:
				return fmt.Errorf("supplier %s, category %s: unknown paging mode %q", s.Supplier, c.Name, c.Paging.Mode)
			}
			if c.Paging.MaxPages < 1 {
				return fmt.Errorf("supplier %s, category %s: max_pages must be positive", s.Supplier, c.Name)
			}
			if c.Paging.NoProgressCap < 1 {
				return fmt.Errorf("supplier %s, category %s: no_progress_cap must be positive", s.Supplier, c.Name)
			}
		}
	}
	return nil
}

// RequiresBrowser reports whether any category needs a rendered session.
// load_more and infinite_scroll cannot be driven over plain HTTP.
func (f *File) RequiresBrowser() bool {
	for _, s := range f.Suppliers {
		for _, c := range s.Categories {
			if c.Paging.Mode == ModeLoadMore || c.Paging.Mode == ModeInfiniteScroll {
				return true
			}
		}
	}
	return false
}

// Targets flattens suppliers x categories into independent units of work.
func (f *File) Targets() []Target {
	var targets []Target
	for _, s := range f.Suppliers {
		for _, c := range s.Categories {
			targets = append(targets, Target{
				Supplier: s.Supplier,
				BaseURL:  s.BaseURL,
				Category: c,
			})
		}
	}
	return targets
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base_url must include a host")
	}
	return u, nil
}
