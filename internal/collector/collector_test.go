package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/dedup"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/models"
)

// pageEngine serves a canned HTML sequence: Fetch yields the first page,
// each Advance the next.
type pageEngine struct {
	htmls []string
	pos   int
	fail  error
}

func (e *pageEngine) Fetch(_ context.Context, rawurl string) (fetch.Page, error) {
	e.pos = 0
	return fetch.NewPage(rawurl, e.htmls[0])
}

func (e *pageEngine) Advance(_ context.Context, p fetch.Page, _ fetch.Step) (fetch.Page, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	if e.pos+1 >= len(e.htmls) {
		return nil, fetch.ErrNoFurtherPages
	}
	e.pos++
	return fetch.NewPage(p.URL().String(), e.htmls[e.pos])
}

func (e *pageEngine) Close() error { return nil }

func card(name, href, price string) string {
	c := `<div class="card">`
	if name != "" {
		c += `<span class="title">` + name + `</span>`
	}
	if href != "" {
		c += `<a href="` + href + `">voir</a>`
	}
	if price != "" {
		c += `<span class="price">` + price + `</span>`
	}
	c += `<span class="brand">Marque</span><span class="unit">1 u</span>` +
		`<img src="https://cdn.example.com/i.jpg"></div>`
	return c
}

func target() config.Target {
	return config.Target{
		Supplier: "castorama",
		BaseURL:  "https://www.castorama.fr",
		Category: config.Category{
			Name: "peinture",
			URL:  "https://www.castorama.fr/peinture",
			Selectors: config.Selectors{
				Card:  ".card",
				Name:  []string{".title"},
				Price: []string{".price"},
				Brand: []string{".brand"},
				Unit:  []string{".unit"},
				Image: []string{"img"},
				Link:  []string{"a"},
			},
			Paging: config.Paging{
				Mode:          config.ModePaged,
				NextButton:    ".next",
				MaxPages:      10,
				NoProgressCap: 3,
			},
		},
	}
}

func TestCollectTwoPageListing(t *testing.T) {
	// Page 1: two good cards plus one without a name.
	// Page 2: one new card plus a repeat of the first.
	page1 := `<html><body>` +
		card("Peinture blanche", "/p/1", "49,90 €") +
		card("Peinture noire", "/p/2", "39,90 €") +
		card("", "/p/3", "9,90 €") +
		`<a class="next" href="/page2">next</a></body></html>`
	page2 := `<html><body>` +
		card("Enduit de lissage", "/p/4", "12,50 €") +
		card("Peinture blanche", "/p/1", "49,90 €") +
		`</body></html>`

	engine := &pageEngine{htmls: []string{page1, page2}}
	c := New(engine, nil, dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)

	res, err := c.Collect(context.Background(), target())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Skipped)

	require.Len(t, res.Products, 3)
	names := []string{res.Products[0].Name, res.Products[1].Name, res.Products[2].Name}
	assert.Equal(t, []string{"Peinture blanche", "Peinture noire", "Enduit de lissage"}, names)
	for _, p := range res.Products {
		assert.Equal(t, models.Complete, p.Completeness)
		assert.Equal(t, "castorama", p.Supplier)
		assert.Equal(t, "peinture", p.Category)
	}

	reasons := make(map[string]int)
	for _, d := range res.Diagnostics {
		reasons[d.Reason]++
	}
	assert.Equal(t, 1, reasons[models.ReasonMissingRequired])
	assert.Equal(t, 1, reasons[models.ReasonDuplicate])
	assert.Len(t, res.Diagnostics, 2)
}

func TestCollectPartialCardGetsDiagnosticButIsKept(t *testing.T) {
	page := `<html><body>` +
		`<div class="card"><span class="title">Sans prix</span><a href="/p/1">voir</a></div>` +
		`</body></html>`

	engine := &pageEngine{htmls: []string{page}}
	c := New(engine, nil, dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)

	res, err := c.Collect(context.Background(), target())
	require.NoError(t, err)

	require.Len(t, res.Products, 1)
	assert.Equal(t, models.Partial, res.Products[0].Completeness)

	reasons := make(map[string]int)
	for _, d := range res.Diagnostics {
		reasons[d.Reason]++
	}
	assert.Equal(t, 1, reasons[models.ReasonPartial])
}

func TestCollectTerminalFetchErrorKeepsPartialResult(t *testing.T) {
	page1 := `<html><body>` +
		card("Peinture blanche", "/p/1", "49,90 €") +
		`<a class="next" href="/page2">next</a></body></html>`

	boom := errors.New("connection reset")
	engine := &pageEngine{htmls: []string{page1, page1}, fail: boom}
	c := New(engine, nil, dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)

	res, err := c.Collect(context.Background(), target())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Len(t, res.Products, 1)
	assert.Equal(t, 1, res.Pages)
}

func TestCollectCancellationKeepsPartialResult(t *testing.T) {
	page1 := `<html><body>` +
		card("Peinture blanche", "/p/1", "49,90 €") +
		`<a class="next" href="/page2">next</a></body></html>`

	engine := &pageEngine{htmls: []string{page1, page1}}
	c := New(engine, nil, dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Collect(ctx, target())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Products)
}

func TestCollectRerunWithSeededIndexAdmitsNothing(t *testing.T) {
	page := `<html><body>` +
		card("Peinture blanche", "/p/1", "49,90 €") +
		card("Peinture noire", "/p/2", "39,90 €") +
		`</body></html>`

	first := New(&pageEngine{htmls: []string{page}}, nil,
		dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)
	res1, err := first.Collect(context.Background(), target())
	require.NoError(t, err)
	require.Len(t, res1.Products, 2)

	seeded := dedup.New(dedup.NewMemoryIndex(), nil)
	_, err = seeded.Seed(context.Background(), res1.Products)
	require.NoError(t, err)

	second := New(&pageEngine{htmls: []string{page}}, nil, seeded, nil, nil)
	res2, err := second.Collect(context.Background(), target())
	require.NoError(t, err)

	assert.Empty(t, res2.Products)
	assert.Equal(t, 2, res2.Duplicates)
}

func TestCollectRelativeURLsResolvedAgainstBase(t *testing.T) {
	page := `<html><body>` +
		card("Peinture blanche", "/p/1", "49,90 €") +
		`</body></html>`

	engine := &pageEngine{htmls: []string{page}}
	c := New(engine, nil, dedup.New(dedup.NewMemoryIndex(), nil), nil, nil)

	res, err := c.Collect(context.Background(), target())
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "https://www.castorama.fr/p/1", res.Products[0].URL)
}
