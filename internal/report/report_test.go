package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo/material-scraper/internal/models"
)

func TestWriteHTML(t *testing.T) {
	result := &models.RunResult{
		RunID: "r1",
		Products: []models.Product{
			{Supplier: "castorama", Name: "a"},
			{Supplier: "castorama", Name: "b"},
			{Supplier: "leroymerlin", Name: "c"},
		},
		Diagnostics: []models.Diagnostic{
			{Reason: models.ReasonDuplicate},
			{Reason: models.ReasonMissingRequired},
		},
	}

	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteHTML(result, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "Items per supplier")
	assert.Contains(t, html, "castorama")
	assert.Contains(t, html, "Diagnostics by reason")
}

func TestWriteHTMLEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteHTML(&models.RunResult{RunID: "empty"}, path))
	assert.FileExists(t, path)
}
