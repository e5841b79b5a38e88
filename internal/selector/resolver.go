// Package selector resolves named fields against page elements using an
// ordered list of selector candidates. Resolution is stateless: resolving
// one field has no effect on another.
package selector

import (
	"strings"

	"github.com/donizo/material-scraper/internal/fetch"
)

// Result carries the winning value and which candidate produced it.
type Result struct {
	Value string
	Index int
}

// Text tries each candidate in order and returns the first non-blank text.
// ok is false when no candidate matched; missing matches never error.
func Text(el fetch.Element, candidates []string) (Result, bool) {
	for i, css := range candidates {
		if css == "" {
			continue
		}
		if v := strings.TrimSpace(el.Text(css)); v != "" {
			return Result{Value: v, Index: i}, true
		}
	}
	return Result{}, false
}

// Attr tries each candidate in order and returns the first non-blank value
// of the named attribute.
func Attr(el fetch.Element, candidates []string, attr string) (Result, bool) {
	for i, css := range candidates {
		if css == "" {
			continue
		}
		if v, ok := el.Attr(css, attr); ok && strings.TrimSpace(v) != "" {
			return Result{Value: strings.TrimSpace(v), Index: i}, true
		}
	}
	return Result{}, false
}
