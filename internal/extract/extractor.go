// Package extract turns raw product-card markup into typed products.
package extract

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/models"
	"github.com/donizo/material-scraper/internal/selector"
)

// Outcome classifies one card extraction.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomePartial
	OutcomeSkipped
)

// CardContext carries the per-category context a card is extracted under.
type CardContext struct {
	Supplier  string
	Category  string
	Base      *url.URL
	Selectors config.Selectors
}

// CardResult is the result-typed return of one card extraction: expected
// degraded cases are values here, never raised faults.
type CardResult struct {
	Product *models.Product // nil when Outcome is OutcomeSkipped
	Outcome Outcome
	// Missing lists unresolved fields: required ones on a skip, optional
	// ones on a partial.
	Missing []string
	// Notes carries non-fatal normalization problems, e.g. a price string
	// that matched a selector but did not parse.
	Notes []string
}

var srcsetURL = regexp.MustCompile(`https://[^,\s]+`)

// Extractor applies the selector sets to product cards and normalizes the
// raw text into typed values.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract resolves every defined field against the card and classifies the
// result. A card missing name or url is skipped; missing optional fields
// degrade it to PARTIAL but it is still returned.
func (e *Extractor) Extract(card fetch.Element, cc CardContext) CardResult {
	var res CardResult

	name := ""
	if r, ok := selector.Text(card, cc.Selectors.Name); ok {
		name = CleanText(r.Value)
	}

	productURL := ""
	if r, ok := selector.Attr(card, cc.Selectors.Link, "href"); ok {
		productURL = resolveURL(cc.Base, r.Value)
	}

	if name == "" || productURL == "" {
		res.Outcome = OutcomeSkipped
		if name == "" {
			res.Missing = append(res.Missing, "name")
		}
		if productURL == "" {
			res.Missing = append(res.Missing, "url")
		}
		return res
	}

	p := models.NewProduct(cc.Supplier, cc.Category)
	p.Name = name
	p.URL = productURL

	priceText := ""
	if r, ok := selector.Text(card, cc.Selectors.Price); ok {
		priceText = r.Value
	}
	derivedCurrency, amount := ParsePrice(priceText)
	p.Price = amount
	switch {
	case priceText == "":
		res.Missing = append(res.Missing, "price")
	case amount == nil:
		res.Missing = append(res.Missing, "price")
		res.Notes = append(res.Notes, models.ReasonPriceParse)
		e.logger.Debug("price text did not parse",
			"supplier", cc.Supplier, "category", cc.Category, "text", priceText)
	}

	if r, ok := selector.Text(card, cc.Selectors.Currency); ok {
		p.Currency = CleanText(r.Value)
	} else if derivedCurrency != "" {
		// No dedicated currency node, but the price text embeds a symbol.
		p.Currency = derivedCurrency
	} else {
		res.Missing = append(res.Missing, "currency")
	}

	if r, ok := selector.Text(card, cc.Selectors.Brand); ok {
		p.Brand = CleanText(r.Value)
	} else {
		res.Missing = append(res.Missing, "brand")
	}

	if r, ok := selector.Text(card, cc.Selectors.Unit); ok {
		p.Unit = CleanText(r.Value)
	} else {
		res.Missing = append(res.Missing, "unit")
	}

	if img := extractImage(card, cc.Selectors.Image); img != "" {
		p.ImageURL = resolveURL(cc.Base, img)
	} else {
		res.Missing = append(res.Missing, "image_url")
	}

	if len(res.Missing) == 0 {
		p.Completeness = models.Complete
		res.Outcome = OutcomeComplete
	} else {
		p.Completeness = models.Partial
		res.Outcome = OutcomePartial
	}

	res.Product = p
	return res
}

// extractImage walks the direct-attribute chain first, then falls back to
// pulling the first https URL out of srcset-style attributes. Inline data:
// URIs are never usable.
func extractImage(card fetch.Element, candidates []string) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if r, ok := selector.Attr(card, candidates, attr); ok {
			if !strings.HasPrefix(r.Value, "data:image") {
				return r.Value
			}
		}
	}

	for _, attr := range []string{"srcset", "data-srcset"} {
		for _, css := range candidates {
			for _, v := range card.Attrs(css, attr) {
				if m := srcsetURL.FindString(v); m != "" && !strings.HasPrefix(m, "data:image") {
					return m
				}
			}
		}
	}

	return ""
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
