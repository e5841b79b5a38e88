package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/donizo/material-scraper/internal/config"
)

var (
	// ErrNoFurtherPages signals normal traversal exhaustion: the paging
	// affordance is missing, hidden, or disabled.
	ErrNoFurtherPages = errors.New("no further pages")

	// ErrUnsupportedMode is returned when an engine cannot drive the
	// requested paging mode.
	ErrUnsupportedMode = errors.New("paging mode not supported by engine")
)

// Error wraps a page-level fetch fault after retries were exhausted.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Element is one card-like node within a fetched page.
type Element interface {
	// Text returns the trimmed text of the first match, or "".
	Text(selector string) string
	// Attr returns the named attribute of the first match.
	Attr(selector, attr string) (string, bool)
	// Attrs returns the named attribute of every match that carries it.
	Attrs(selector, attr string) []string
}

// Page is the rendered content of one listing page.
type Page interface {
	URL() *url.URL
	// Cards enumerates the card-like sub-elements matching selector.
	Cards(selector string) []Element
	// Has reports whether any element matches selector.
	Has(selector string) bool
	// Attr returns the named attribute of the first match on the page.
	Attr(selector, attr string) (string, bool)
	// Signature fingerprints the card set for forward-progress detection.
	Signature(cardSelector string) string
}

// Step describes one traversal advance for Engine.Advance.
type Step struct {
	Mode             config.PagingMode
	NextSelector     string
	LoadMoreSelector string
	CardSelector     string
	ScrollSteps      int
	ScrollWait       time.Duration
}

// Engine issues page loads and paging actions. Implementations decide
// whether content comes from plain HTTP or a rendered browser session.
type Engine interface {
	Fetch(ctx context.Context, rawurl string) (Page, error)
	// Advance performs the step against the current page and returns the
	// next page content, or ErrNoFurtherPages at normal exhaustion.
	Advance(ctx context.Context, p Page, step Step) (Page, error)
	Close() error
}

// Factory builds one engine per traversal worker.
type Factory func() (Engine, error)

// htmlPage backs Page with a parsed goquery document.
type htmlPage struct {
	u   *url.URL
	doc *goquery.Document
}

// NewPage parses raw HTML into a Page anchored at rawurl.
func NewPage(rawurl, html string) (Page, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return &htmlPage{u: u, doc: doc}, nil
}

func (p *htmlPage) URL() *url.URL {
	return p.u
}

func (p *htmlPage) Cards(selector string) []Element {
	var cards []Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		cards = append(cards, &element{sel: s})
	})
	return cards
}

func (p *htmlPage) Has(selector string) bool {
	return p.doc.Find(selector).Length() > 0
}

func (p *htmlPage) Attr(selector, attr string) (string, bool) {
	v, ok := p.doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v), ok
}

func (p *htmlPage) Signature(cardSelector string) string {
	h := sha256.New()
	p.doc.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		if markup, err := goquery.OuterHtml(s); err == nil {
			h.Write([]byte(markup))
		}
	})
	return hex.EncodeToString(h.Sum(nil))
}

type element struct {
	sel *goquery.Selection
}

func (e *element) Text(selector string) string {
	return strings.TrimSpace(e.sel.Find(selector).First().Text())
}

func (e *element) Attr(selector, attr string) (string, bool) {
	v, ok := e.sel.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v), ok
}

func (e *element) Attrs(selector, attr string) []string {
	var values []string
	e.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			values = append(values, strings.TrimSpace(v))
		}
	})
	return values
}
