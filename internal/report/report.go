// Package report turns a run result into a self-contained HTML summary.
package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/donizo/material-scraper/internal/models"
)

// WriteHTML renders two bar charts, admitted items per supplier and
// diagnostics per reason, into a single HTML file.
func WriteHTML(result *models.RunResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer f.Close()

	items := charts.NewBar()
	items.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Items per supplier",
			Subtitle: fmt.Sprintf("run %s", result.RunID),
		}),
	)
	supplierCounts := make(map[string]int)
	for _, p := range result.Products {
		supplierCounts[p.Supplier]++
	}
	x, y := sortedBars(supplierCounts)
	items.SetXAxis(x).AddSeries("admitted", y)

	diags := charts.NewBar()
	diags.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Diagnostics by reason"}),
	)
	reasonCounts := make(map[string]int)
	for _, d := range result.Diagnostics {
		reasonCounts[d.Reason]++
	}
	x, y = sortedBars(reasonCounts)
	diags.SetXAxis(x).AddSeries("count", y)

	if err := items.Render(f); err != nil {
		return fmt.Errorf("rendering items chart: %w", err)
	}
	if err := diags.Render(f); err != nil {
		return fmt.Errorf("rendering diagnostics chart: %w", err)
	}
	return nil
}

func sortedBars(counts map[string]int) ([]string, []opts.BarData) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bars := make([]opts.BarData, 0, len(keys))
	for _, k := range keys {
		bars = append(bars, opts.BarData{Value: counts[k]})
	}
	return keys, bars
}
