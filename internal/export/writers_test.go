package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo/material-scraper/internal/models"
)

func sampleProducts() []models.Product {
	price := 49.90
	return []models.Product{
		{
			Supplier:     "castorama",
			Category:     "peinture",
			Name:         "Peinture blanche",
			Price:        &price,
			Currency:     "€",
			URL:          "https://c.fr/p/1",
			Brand:        "Dulux",
			Unit:         "10 L",
			ImageURL:     "https://cdn.c.fr/1.jpg",
			Timestamp:    1756166400,
			Completeness: models.Complete,
		},
		{
			Supplier:     "castorama",
			Category:     "peinture",
			Name:         "Sous-couche",
			URL:          "https://c.fr/p/2",
			Timestamp:    1756166401,
			Completeness: models.Partial,
		},
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "products.json")

	w := NewJSONWriter(path)
	require.NoError(t, w.Write(sampleProducts()))
	require.NoError(t, w.Close())
	require.NoError(t, w.Validate())

	ds, err := ReadDataset(path)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Count)
	assert.NotZero(t, ds.ScrapedAt)
	require.Len(t, ds.Items, 2)
	assert.Equal(t, "Peinture blanche", ds.Items[0].Name)
	require.NotNil(t, ds.Items[0].Price)
	assert.InDelta(t, 49.90, *ds.Items[0].Price, 0.001)
	assert.Nil(t, ds.Items[1].Price)
}

func TestJSONWriterEmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")

	w := NewJSONWriter(path)
	require.NoError(t, w.Close())

	ds, err := ReadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Count)
	assert.NotNil(t, ds.Items)
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")

	w := NewCSVWriter(path)
	require.NoError(t, w.Write(sampleProducts()))
	require.NoError(t, w.Close())
	require.NoError(t, w.Validate())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Peinture blanche", rows[1][2])
	assert.Equal(t, "49.9", rows[1][3])
	assert.Equal(t, "COMPLETE", rows[1][10])
	assert.Equal(t, "", rows[2][3], "missing price stays empty, never zero")
	assert.Equal(t, "PARTIAL", rows[2][10])
}

func TestCSVWriterEmptyDatasetStillHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	w := NewCSVWriter(path)
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter("both", filepath.Join(dir, "products.json"))
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleProducts()))
	require.NoError(t, w.Close())

	assert.FileExists(t, filepath.Join(dir, "products.json"))
	assert.FileExists(t, filepath.Join(dir, "products.csv"))
}

func TestNewWriterUnknownFormat(t *testing.T) {
	_, err := NewWriter("xml", "out.xml")
	assert.Error(t, err)
}

func TestReadDatasetErrors(t *testing.T) {
	_, err := ReadDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	_, err = ReadDataset(bad)
	assert.Error(t, err)
}
