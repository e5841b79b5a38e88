package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo/material-scraper/internal/fetch"
)

func cardFromHTML(t *testing.T, html string) fetch.Element {
	t.Helper()
	page, err := fetch.NewPage("https://www.example.com", "<div class='card'>"+html+"</div>")
	require.NoError(t, err)
	cards := page.Cards(".card")
	require.Len(t, cards, 1)
	return cards[0]
}

func TestTextFirstNonBlankWins(t *testing.T) {
	card := cardFromHTML(t, `
		<span class="a"></span>
		<span class="b">  </span>
		<span class="c">third</span>
		<span class="d">fourth</span>`)

	res, ok := Text(card, []string{".a", ".b", ".c", ".d"})
	require.True(t, ok)
	assert.Equal(t, "third", res.Value)
	assert.Equal(t, 2, res.Index)
}

func TestTextNoCandidateMatches(t *testing.T) {
	card := cardFromHTML(t, `<span class="x">value</span>`)

	_, ok := Text(card, []string{".missing", ".also-missing"})
	assert.False(t, ok)
}

func TestTextEmptyCandidateListIsNotAnError(t *testing.T) {
	card := cardFromHTML(t, `<span>value</span>`)

	_, ok := Text(card, nil)
	assert.False(t, ok)
}

func TestTextSkipsBlankCandidates(t *testing.T) {
	card := cardFromHTML(t, `<span class="x">value</span>`)

	res, ok := Text(card, []string{"", ".x"})
	require.True(t, ok)
	assert.Equal(t, "value", res.Value)
	assert.Equal(t, 1, res.Index)
}

func TestAttrFirstNonBlankWins(t *testing.T) {
	card := cardFromHTML(t, `
		<a class="a" href="">blank</a>
		<a class="b" href="/p/target">real</a>`)

	res, ok := Attr(card, []string{".a", ".b"}, "href")
	require.True(t, ok)
	assert.Equal(t, "/p/target", res.Value)
	assert.Equal(t, 1, res.Index)
}

func TestResolutionIsStateless(t *testing.T) {
	card := cardFromHTML(t, `
		<span class="title">Name</span>
		<span class="price">9,99 €</span>`)

	first, ok := Text(card, []string{".title"})
	require.True(t, ok)

	_, _ = Text(card, []string{".price"})

	again, ok := Text(card, []string{".title"})
	require.True(t, ok)
	assert.Equal(t, first, again)
}
