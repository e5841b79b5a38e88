// Package export persists run output as JSON and/or CSV datasets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/donizo/material-scraper/internal/models"
)

// Writer persists scraped products to some destination. Validate is called
// after Close to confirm the destination actually holds a dataset.
type Writer interface {
	Write(products []models.Product) error
	Close() error
	Validate() error
}

// Dataset is the on-disk JSON envelope.
type Dataset struct {
	ScrapedAt int64            `json:"scraped_at"`
	Count     int              `json:"count"`
	Items     []models.Product `json:"items"`
}

// NewWriter builds a writer for the given format: "json", "csv" or "both".
func NewWriter(format, path string) (Writer, error) {
	switch format {
	case "json":
		return NewJSONWriter(path), nil
	case "csv":
		return NewCSVWriter(path), nil
	case "both":
		base := path[:len(path)-len(filepath.Ext(path))]
		return &DualWriter{
			json: NewJSONWriter(base + ".json"),
			csv:  NewCSVWriter(base + ".csv"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONWriter accumulates products and writes one dataset envelope on Close.
type JSONWriter struct {
	path  string
	items []models.Product
}

func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

func (w *JSONWriter) Write(products []models.Product) error {
	w.items = append(w.items, products...)
	return nil
}

func (w *JSONWriter) Close() error {
	if err := ensureDir(w.path); err != nil {
		return err
	}
	ds := Dataset{
		ScrapedAt: time.Now().Unix(),
		Count:     len(w.items),
		Items:     w.items,
	}
	if ds.Items == nil {
		ds.Items = []models.Product{}
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	return nil
}

// Validate ensures the dataset file exists and parses back.
func (w *JSONWriter) Validate() error {
	_, err := ReadDataset(w.path)
	return err
}

// CSVWriter streams products row by row with a fixed header.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

var csvHeader = []string{
	"supplier", "category", "name", "price", "currency",
	"url", "brand", "unit", "image_url", "timestamp", "completeness",
}

func (w *CSVWriter) Write(products []models.Product) error {
	if w.file == nil {
		if err := ensureDir(w.path); err != nil {
			return err
		}
		f, err := os.Create(w.path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", w.path, err)
		}
		w.file = f
		w.writer = csv.NewWriter(f)
		if err := w.writer.Write(csvHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, p := range products {
		price := ""
		if p.Price != nil {
			price = strconv.FormatFloat(*p.Price, 'f', -1, 64)
		}
		row := []string{
			p.Supplier, p.Category, p.Name, price, p.Currency,
			p.URL, p.Brand, p.Unit, p.ImageURL,
			strconv.FormatInt(p.Timestamp, 10), string(p.Completeness),
		}
		if err := w.writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *CSVWriter) Close() error {
	if w.file == nil {
		// Nothing written; still produce a valid empty dataset.
		if err := w.Write(nil); err != nil {
			return err
		}
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Validate ensures the file has content besides the header.
func (w *CSVWriter) Validate() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// DualWriter fans out to JSON and CSV destinations.
type DualWriter struct {
	json *JSONWriter
	csv  *CSVWriter
}

func (w *DualWriter) Write(products []models.Product) error {
	if err := w.json.Write(products); err != nil {
		return err
	}
	return w.csv.Write(products)
}

func (w *DualWriter) Close() error {
	jsonErr := w.json.Close()
	csvErr := w.csv.Close()
	if jsonErr != nil {
		return jsonErr
	}
	return csvErr
}

func (w *DualWriter) Validate() error {
	if err := w.json.Validate(); err != nil {
		return err
	}
	return w.csv.Validate()
}

// ReadDataset loads a previously written JSON dataset, used to seed the
// identity index so reruns skip already-captured items.
func ReadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &ds, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
