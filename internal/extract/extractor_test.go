package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/models"
)

func cardFromHTML(t *testing.T, html string) fetch.Element {
	t.Helper()
	page, err := fetch.NewPage("https://www.example.com/list", "<html><body>"+html+"</body></html>")
	require.NoError(t, err)
	cards := page.Cards(".product-card")
	require.Len(t, cards, 1)
	return cards[0]
}

func testContext() CardContext {
	base, _ := url.Parse("https://www.example.com")
	return CardContext{
		Supplier: "castorama",
		Category: "peinture",
		Base:     base,
		Selectors: config.Selectors{
			Card:  ".product-card",
			Name:  []string{".title"},
			Price: []string{".price"},
			Brand: []string{".brand"},
			Unit:  []string{".unit"},
			Image: []string{"img"},
			Link:  []string{"a"},
		},
	}
}

func TestExtractCompleteCard(t *testing.T) {
	card := cardFromHTML(t, `
		<div class="product-card">
			<a href="/p/peinture-blanche-10l"><span class="title">Peinture blanche mat</span></a>
			<span class="brand">Dulux</span>
			<span class="price">49,90 €</span>
			<span class="unit">10 L</span>
			<img src="https://cdn.example.com/p1.jpg">
		</div>`)

	res := NewExtractor(nil).Extract(card, testContext())

	assert.Equal(t, OutcomeComplete, res.Outcome)
	require.NotNil(t, res.Product)
	p := res.Product
	assert.Equal(t, "Peinture blanche mat", p.Name)
	assert.Equal(t, "https://www.example.com/p/peinture-blanche-10l", p.URL)
	assert.Equal(t, "Dulux", p.Brand)
	assert.Equal(t, "10 L", p.Unit)
	assert.Equal(t, "€", p.Currency)
	require.NotNil(t, p.Price)
	assert.InDelta(t, 49.90, *p.Price, 0.001)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", p.ImageURL)
	assert.Equal(t, models.Complete, p.Completeness)
	assert.NotZero(t, p.Timestamp)
}

func TestExtractSkipsCardWithoutName(t *testing.T) {
	card := cardFromHTML(t, `
		<div class="product-card">
			<a href="/p/unnamed"></a>
			<span class="price">19,99 €</span>
		</div>`)

	res := NewExtractor(nil).Extract(card, testContext())

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Nil(t, res.Product)
	assert.Contains(t, res.Missing, "name")
}

func TestExtractSkipsCardWithoutLink(t *testing.T) {
	card := cardFromHTML(t, `
		<div class="product-card">
			<span class="title">Carrelage gris</span>
		</div>`)

	res := NewExtractor(nil).Extract(card, testContext())

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Contains(t, res.Missing, "url")
}

func TestExtractPartialWhenOptionalFieldsMissing(t *testing.T) {
	card := cardFromHTML(t, `
		<div class="product-card">
			<a href="/p/sans-marque"><span class="title">Visseuse 18V</span></a>
			<span class="price">89 €</span>
		</div>`)

	res := NewExtractor(nil).Extract(card, testContext())

	assert.Equal(t, OutcomePartial, res.Outcome)
	require.NotNil(t, res.Product)
	assert.Equal(t, models.Partial, res.Product.Completeness)
	assert.ElementsMatch(t, []string{"brand", "unit", "image_url"}, res.Missing)
	require.NotNil(t, res.Product.Price)
	assert.InDelta(t, 89.0, *res.Product.Price, 0.001)
}

func TestExtractPriceParseFailureIsNonFatal(t *testing.T) {
	card := cardFromHTML(t, `
		<div class="product-card">
			<a href="/p/devis"><span class="title">Fenêtre sur mesure</span></a>
			<span class="brand">Tryba</span>
			<span class="unit">unité</span>
			<span class="price">prix sur demande</span>
			<img src="https://cdn.example.com/w.jpg">
		</div>`)

	res := NewExtractor(nil).Extract(card, testContext())

	assert.Equal(t, OutcomePartial, res.Outcome)
	require.NotNil(t, res.Product)
	assert.Nil(t, res.Product.Price)
	assert.Contains(t, res.Missing, "price")
	assert.Contains(t, res.Notes, models.ReasonPriceParse)
}

func TestExtractImageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		img  string
		want string
	}{
		{
			name: "data-src when src is a placeholder data uri",
			img:  `<img src="data:image/gif;base64,R0lGOD" data-src="https://cdn.example.com/lazy.jpg">`,
			want: "https://cdn.example.com/lazy.jpg",
		},
		{
			name: "first https url out of srcset",
			img:  `<img srcset="https://cdn.example.com/small.jpg 1x, https://cdn.example.com/big.jpg 2x">`,
			want: "https://cdn.example.com/small.jpg",
		},
		{
			name: "relative src resolved against base",
			img:  `<img src="/media/p2.jpg">`,
			want: "https://www.example.com/media/p2.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := cardFromHTML(t, `
				<div class="product-card">
					<a href="/p/x"><span class="title">X</span></a>
					`+tt.img+`
				</div>`)

			res := NewExtractor(nil).Extract(card, testContext())
			require.NotNil(t, res.Product)
			assert.Equal(t, tt.want, res.Product.ImageURL)
		})
	}
}

func TestExtractSelectorPriorityOrder(t *testing.T) {
	cc := testContext()
	cc.Selectors.Name = []string{".missing", ".title", ".fallback-title"}

	card := cardFromHTML(t, `
		<div class="product-card">
			<a href="/p/x">
				<span class="title">Primary</span>
				<span class="fallback-title">Secondary</span>
			</a>
		</div>`)

	res := NewExtractor(nil).Extract(card, cc)
	require.NotNil(t, res.Product)
	assert.Equal(t, "Primary", res.Product.Name)
}
