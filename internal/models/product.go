package models

import (
	"time"
)

// Completeness classifies how many optional fields an extracted product carries.
type Completeness string

const (
	Complete Completeness = "COMPLETE"
	Partial  Completeness = "PARTIAL"
)

// Product is one extracted listing item. Immutable once produced.
type Product struct {
	Supplier     string       `json:"supplier"`
	Category     string       `json:"category"`
	Name         string       `json:"name"`
	Price        *float64     `json:"price"`
	Currency     string       `json:"currency,omitempty"`
	URL          string       `json:"url"`
	Brand        string       `json:"brand,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Timestamp    int64        `json:"timestamp"`
	Completeness Completeness `json:"completeness"`
}

// NewProduct stamps a product for the given supplier and category.
func NewProduct(supplier, category string) *Product {
	return &Product{
		Supplier:  supplier,
		Category:  category,
		Timestamp: time.Now().Unix(),
	}
}
