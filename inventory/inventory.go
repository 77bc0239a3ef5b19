// Package inventory defines the persistence collaborators the scraper
// and tracker code talk to, plus the cost arithmetic that applies
// effective buyer-premium and tax defaults to scraped lots.
package inventory

import (
	"errors"
	"math"
	"strconv"

	"github.com/fliptrack/fliptrack/models"
)

// ErrNotFound is returned by stores when no record has the given id.
var ErrNotFound = errors.New("inventory: record not found")

// Settings keys consumed by the cost calculator.
const (
	SettingDefaultBuyerPremium = "default_buyer_premium"
	SettingDefaultTaxRate      = "default_tax_rate"
)

// Store is a create/read/update/delete record store keyed by numeric
// identifiers. Implementations must be safe for concurrent use.
type Store interface {
	Item(id int) (*models.Item, error)
	Items() ([]*models.Item, error)
	SaveItem(item *models.Item) (int, error)
	DeleteItem(id int) error

	Supply(id int) (*models.Supply, error)
	Supplies() ([]*models.Supply, error)
	SaveSupply(supply *models.Supply) (int, error)
	DeleteSupply(id int) error

	Catalog(id int) (*models.Catalog, error)
	Catalogs() ([]*models.Catalog, error)
	SaveCatalog(catalog *models.Catalog) (int, error)
	DeleteCatalog(id int) error
}

// Settings is a string key/value lookup for user-configurable defaults.
type Settings interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// EffectiveBuyerPremium resolves the premium percentage for a lot:
// lot override, then catalog default, then the settings default, else 0.
func EffectiveBuyerPremium(lot *models.Lot, catalog *models.Catalog, settings Settings) float64 {
	if lot != nil && lot.BuyerPremium != nil {
		return *lot.BuyerPremium
	}
	if catalog != nil && catalog.BuyerPremium != nil {
		return *catalog.BuyerPremium
	}
	return settingFloat(settings, SettingDefaultBuyerPremium)
}

// EffectiveTaxRate resolves the tax percentage for a lot. Lots never
// carry a scraped tax rate, so in practice this falls through to the
// settings default, but the override chain matches the premium's.
func EffectiveTaxRate(lot *models.Lot, catalog *models.Catalog, settings Settings) float64 {
	if lot != nil && lot.TaxRate != nil {
		return *lot.TaxRate
	}
	return settingFloat(settings, SettingDefaultTaxRate)
}

// LotTotalCost is the all-in cost of winning a lot at its current bid:
// bid, plus the buyer premium on the bid, plus tax on bid and premium,
// plus shipping. All amounts integer cents; each percentage charge is
// rounded independently.
func LotTotalCost(lot *models.Lot, catalog *models.Catalog, settings Settings) int {
	if lot == nil {
		return 0
	}
	bid := lot.CurrentBid
	premium := int(math.Round(float64(bid) * EffectiveBuyerPremium(lot, catalog, settings) / 100))
	tax := int(math.Round(float64(bid+premium) * EffectiveTaxRate(lot, catalog, settings) / 100))
	return bid + premium + tax + lot.ShippingCost
}

func settingFloat(settings Settings, key string) float64 {
	if settings == nil {
		return 0
	}
	raw, ok := settings.Get(key)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
