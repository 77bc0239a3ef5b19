package models

import (
	"fmt"
	"math"
	"time"
)

// ItemStatus tracks where an item is in its resale lifecycle.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusListed   ItemStatus = "listed"
	StatusInRepair ItemStatus = "in_repair"
	StatusSold     ItemStatus = "sold"
)

// Item is one physical good being flipped. Money is integer cents.
type Item struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	PurchaseDate      time.Time  `json:"purchase_date"`
	PurchasePrice     int        `json:"purchase_price"`
	IsAuction         bool       `json:"is_auction"`
	AuctionBid        int        `json:"auction_bid,omitempty"`
	AuctionPremium    *float64   `json:"auction_buyer_premium,omitempty"`
	AuctionTaxRate    *float64   `json:"auction_tax_rate,omitempty"`
	SaleDate          *time.Time `json:"sale_date,omitempty"`
	SalePrice         *int       `json:"sale_price,omitempty"`
	ExpectedSalePrice *int       `json:"expected_sale_price,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Category          string     `json:"category,omitempty"`
	Status            ItemStatus `json:"status"`

	Repairs    []*Repair    `json:"repairs,omitempty"`
	OtherCosts []*OtherCost `json:"other_costs,omitempty"`
}

// TotalCosts is purchase price plus every repair and incidental cost.
func (i *Item) TotalCosts() int {
	total := i.PurchasePrice
	for _, r := range i.Repairs {
		total += r.TotalCost()
	}
	for _, c := range i.OtherCosts {
		total += c.Amount
	}
	return total
}

// Profit is sale price minus total costs; nil until the item is sold.
func (i *Item) Profit() *int {
	if i.SalePrice == nil {
		return nil
	}
	p := *i.SalePrice - i.TotalCosts()
	return &p
}

// ROI is profit as a percentage of total costs; nil until sold or when
// there is no cost basis to divide by.
func (i *Item) ROI() *float64 {
	if i.SalePrice == nil || i.TotalCosts() == 0 {
		return nil
	}
	r := float64(*i.SalePrice-i.TotalCosts()) / float64(i.TotalCosts()) * 100
	return &r
}

// PotentialProfit uses the expected sale price instead of an actual sale.
func (i *Item) PotentialProfit() *int {
	if i.ExpectedSalePrice == nil {
		return nil
	}
	p := *i.ExpectedSalePrice - i.TotalCosts()
	return &p
}

// PotentialROI mirrors ROI for the expected sale price.
func (i *Item) PotentialROI() *float64 {
	if i.ExpectedSalePrice == nil || i.TotalCosts() == 0 {
		return nil
	}
	r := float64(*i.ExpectedSalePrice-i.TotalCosts()) / float64(i.TotalCosts()) * 100
	return &r
}

// IsSold reports whether the item has completed its lifecycle.
func (i *Item) IsSold() bool {
	return i.Status == StatusSold
}

// RepairStatus values mirror the workshop workflow.
const (
	RepairPending    = "pending"
	RepairInProgress = "in_progress"
	RepairCompleted  = "completed"
)

// Repair is one repair job on an item, with its consumed supplies.
type Repair struct {
	ID           int            `json:"id"`
	ItemID       int            `json:"item_id"`
	Notes        string         `json:"notes"`
	ExpectedCost *int           `json:"expected_cost,omitempty"`
	FinalCost    *int           `json:"final_cost,omitempty"`
	Status       string         `json:"status"`
	Supplies     []*SupplyUsage `json:"supplies,omitempty"`
}

// TotalCost is the final cost when known, else the estimate, plus the
// cost of every supply consumed.
func (r *Repair) TotalCost() int {
	base := 0
	switch {
	case r.FinalCost != nil:
		base = *r.FinalCost
	case r.ExpectedCost != nil:
		base = *r.ExpectedCost
	}
	for _, u := range r.Supplies {
		base += u.CostCents
	}
	return base
}

// OtherCost is an incidental expense attached to an item.
type OtherCost struct {
	ID          int       `json:"id"`
	ItemID      int       `json:"item_id"`
	Description string    `json:"description"`
	Amount      int       `json:"amount"`
	Date        time.Time `json:"date"`
}

// Supply is a consumable stocked in bulk and drawn down by repairs.
type Supply struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	CostCents int     `json:"cost_cents"`
}

// CostPerUnit is the current average cost of one unit of the supply.
func (s *Supply) CostPerUnit() float64 {
	if s.Quantity == 0 {
		return 0
	}
	return float64(s.CostCents) / s.Quantity
}

// ApplyUsage draws qty units from stock and returns the cents charged to
// the consuming repair. The supply's remaining value shrinks by the same
// amount so the average unit cost stays stable.
func (s *Supply) ApplyUsage(qty float64) (int, error) {
	if qty > s.Quantity {
		return 0, fmt.Errorf("insufficient supply quantity: have %.2f, need %.2f", s.Quantity, qty)
	}
	cost := int(math.Round(s.CostPerUnit() * qty))
	s.Quantity -= qty
	s.CostCents -= cost
	return cost, nil
}

// SupplyUsage records supplies consumed by a repair.
type SupplyUsage struct {
	ID           int     `json:"id"`
	RepairID     int     `json:"repair_id"`
	SupplyID     int     `json:"supply_id"`
	QuantityUsed float64 `json:"quantity_used"`
	CostCents    int     `json:"cost_cents"`
}
