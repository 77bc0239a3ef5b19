// Package hibid scrapes HiBid auction catalogs and lot detail pages into
// structured records. Extraction is a best-effort cascade of heuristics
// over server-rendered HTML; every extracted field is optional and
// callers must tolerate absent values.
package hibid

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fliptrack/fliptrack/config"
	"github.com/fliptrack/fliptrack/models"
	"github.com/fliptrack/fliptrack/parser"
)

// maxLotImages caps how many discovered image URLs a lot record keeps.
const maxLotImages = 3

// Scraper drives catalog pagination, lot resolution, and per-lot page
// extraction. One scrape invocation is purely sequential; run separate
// Scraper calls in separate goroutines to scrape catalogs concurrently.
type Scraper struct {
	cfg      *config.Config
	client   *Client
	Metrics  *Metrics
	progress ProgressFunc
}

// New builds a scraper configured from cfg.
func New(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:     cfg,
		client:  client,
		Metrics: metrics,
	}, nil
}

// SetProgress installs a caller-supplied progress sink. Pass nil to
// disable reporting.
func (s *Scraper) SetProgress(fn ProgressFunc) {
	s.progress = fn
}

// Client exposes the underlying fetch client, mainly so callers can
// swap transports.
func (s *Scraper) Client() *Client {
	return s.client
}

// ScrapeCatalog scrapes one auction catalog. When targetLotNumbers is
// non-empty, only those lots are fetched, in deduplicated numeric order
// (non-numeric values last); otherwise every lot discovered across the
// catalog's pages is scraped. A lot number that never resolves to a
// detail URL falls back to the catalog URL itself, yielding a degraded
// best-effort record. Any fetch failure for an individual lot fails the
// whole call.
func (s *Scraper) ScrapeCatalog(ctx context.Context, catalogURL string, targetLotNumbers []string) (*models.Catalog, error) {
	targets := parser.SortLotNumbers(targetLotNumbers)

	slog.Debug("scraping catalog",
		slog.String("url", catalogURL),
		slog.Int("targets", len(targets)),
	)
	s.emit(Progress{Phase: PhaseCatalog, Message: "fetching catalog"})

	res, err := s.client.PoliteGet(ctx, catalogURL, nil, s.cfg.CatalogTimeout, "catalog")
	if err != nil {
		return nil, err
	}
	pg, err := Normalize(res.Body, catalogURL)
	if err != nil {
		return nil, err
	}

	catalog := &models.Catalog{
		Title:       ExtractCatalogTitle(pg),
		URL:         catalogURL,
		EndTimeText: ExtractCatalogEndTime(pg),
		ScrapedAt:   time.Now(),
	}
	if pct, ok := ExtractBuyerPremium(pg); ok {
		catalog.BuyerPremium = &pct
	}

	lm := newLotMap()
	for _, ref := range ExtractLotLinks(pg) {
		lm.insert(ref)
	}

	if len(targets) > 0 {
		// Extend the map across pages until every target resolves or
		// pagination exhausts.
		extra, err := s.CollectLotMap(ctx, catalogURL, targets)
		if err != nil {
			return nil, err
		}
		for k, v := range extra {
			lm.insert(LotReference{LotNumber: k, URL: v})
		}
	} else {
		full, err := s.CollectLotMap(ctx, catalogURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range full {
			lm.insert(LotReference{LotNumber: k, URL: v})
		}
		for k := range lm.found {
			targets = append(targets, k)
		}
		targets = parser.SortLotNumbers(targets)
	}

	base := originOf(catalogURL)
	for i, num := range targets {
		lotURL := resolveLotURL(lm, num, base, catalogURL)
		s.emit(Progress{Phase: PhaseLot, Found: i + 1, Total: len(targets), LotNumber: num})

		lot, err := s.scrapeLotPage(ctx, lotURL)
		if err != nil {
			return nil, err
		}
		lot.LotNumber = num
		if lot.Title == "" {
			lot.Title = "Lot " + num
		}
		catalog.Lots = append(catalog.Lots, lot)
	}

	slog.Debug("catalog scrape finished",
		slog.String("url", catalogURL),
		slog.Int("lots", len(catalog.Lots)),
	)
	return catalog, nil
}

// ScrapeLot fetches and extracts a single lot detail page.
func (s *Scraper) ScrapeLot(ctx context.Context, lotURL string) (*models.Lot, error) {
	return s.scrapeLotPage(ctx, lotURL)
}

func (s *Scraper) scrapeLotPage(ctx context.Context, lotURL string) (*models.Lot, error) {
	res, err := s.client.PoliteGet(ctx, lotURL, nil, s.cfg.Timeout, "lot")
	if err != nil {
		return nil, err
	}

	lot := &models.Lot{
		URL:          lotURL,
		ETag:         res.ETag,
		LastModified: res.LastModified,
		ScrapedAt:    time.Now(),
	}
	if res.NotModified() {
		// Validator cache hit: nothing new to extract.
		return lot, nil
	}

	pg, err := Normalize(res.Body, lotURL)
	if err != nil {
		return nil, err
	}

	lot.Title = ExtractTitle(pg)
	lot.Description = ExtractDescription(pg)
	lot.EndTimeText = ExtractEndTimeText(pg)
	if cents, ok := ExtractCurrentBid(pg); ok {
		lot.CurrentBid = cents
	}
	if pct, ok := ExtractBuyerPremium(pg); ok {
		lot.BuyerPremium = &pct
	}
	// TaxRate is deliberately never scraped; callers supply defaults.

	images := ExtractImages(pg)
	if len(images) > maxLotImages {
		images = images[:maxLotImages]
	}
	lot.Images = images

	s.Metrics.IncLots()
	return lot, nil
}

// resolveLotURL maps a lot number to its detail URL, trying the exact
// key, then the zero-stripped key, then falling back to the catalog URL
// itself when the lot was never discovered.
func resolveLotURL(lm *lotMap, lotNumber, base, catalogURL string) string {
	href, ok := lm.resolve(lotNumber)
	if !ok || href == "" {
		return catalogURL
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	if base == "" {
		return href
	}
	return joinURL(base, href)
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func joinURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	r, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(r).String()
}
