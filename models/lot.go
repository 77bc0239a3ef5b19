// Package models defines the data structures shared across the scraper,
// pipeline, and inventory bookkeeping.
package models

import "time"

// Lot is one scraped auction lot. All money fields are integer cents;
// every extracted field is best-effort and may be empty or nil.
type Lot struct {
	LotNumber    string   `csv:"lot_number" json:"lot_number"`
	Title        string   `csv:"title" json:"title"`
	Description  string   `csv:"description" json:"description"`
	CurrentBid   int      `csv:"current_bid" json:"current_bid"`
	BuyerPremium *float64 `csv:"buyer_premium" json:"buyer_premium"`
	// TaxRate is never filled by the scraper; callers apply their own
	// defaults or overrides.
	TaxRate      *float64  `csv:"tax_rate" json:"tax_rate"`
	ShippingCost int       `csv:"shipping_cost" json:"shipping_cost"`
	Images       []string  `csv:"images" json:"images"`
	EndTimeText  string    `csv:"end_time_text" json:"end_time_text"`
	URL          string    `csv:"url" json:"url"`
	ETag         string    `csv:"-" json:"etag,omitempty"`
	LastModified string    `csv:"-" json:"last_modified,omitempty"`
	ScrapedAt    time.Time `csv:"scraped_at" json:"scraped_at"`
}

// Catalog is the assembled result of scraping one auction catalog.
type Catalog struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	EndTimeText string `json:"end_time_text"`
	// BuyerPremium is the catalog-wide default, when one was found.
	BuyerPremium *float64  `json:"buyer_premium"`
	Lots         []*Lot    `json:"lots"`
	ScrapedAt    time.Time `json:"scraped_at"`
}
