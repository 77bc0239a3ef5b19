package hibid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/fliptrack/fliptrack/config"
)

func lotPage(num, bid string, images int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>Widget %s - HiBid Auctions</title></head><body>`, num)
	fmt.Fprintf(&b, `<h1>Widget %s</h1>`, num)
	fmt.Fprintf(&b, `<div><span>Current Bid:</span><span>%s</span></div>`, bid)
	for i := 1; i <= images; i++ {
		fmt.Fprintf(&b, `<img class="lot-image" src="/img/%s-%d.jpg">`, num, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestScrapeCatalogWithTargets(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	page1 := `<html><body><h1>Spring Auction</h1>
		<p>A 15% buyer's premium applies to all purchases.</p>
		<div class="card"><a href="/lot/1">Lot #1</a></div>
		<div class="card"><a href="/lot/2">Lot #2</a></div>
	</body></html>`
	page2 := `<html><body>
		<div class="card"><a href="/lot/3">Lot #3</a></div>
		<div class="card"><a href="/lot/1">Lot #1</a></div>
	</body></html>`

	transport.RegisterResponder("GET", pageURL(1), httpmock.NewStringResponder(200, page1))
	transport.RegisterResponder("GET", pageURL(2), httpmock.NewStringResponder(200, page2))
	for _, num := range []string{"1", "2", "3"} {
		transport.RegisterResponder("GET", "http://auction.test/lot/"+num,
			httpmock.NewStringResponder(200, lotPage(num, "$"+num+"5.00", 1)))
	}

	var lotEvents int
	s.SetProgress(func(ev Progress) {
		if ev.Phase == PhaseLot {
			lotEvents++
		}
	})

	catalog, err := s.ScrapeCatalog(context.Background(), testCatalogURL, []string{"3", "1", "2", "1"})
	if err != nil {
		t.Fatalf("scrape catalog: %v", err)
	}

	if catalog.Title != "Spring Auction" {
		t.Errorf("catalog title = %q, want %q", catalog.Title, "Spring Auction")
	}
	if catalog.BuyerPremium == nil || *catalog.BuyerPremium != 15.0 {
		t.Errorf("catalog premium = %v, want 15", catalog.BuyerPremium)
	}

	if len(catalog.Lots) != 3 {
		t.Fatalf("lots = %d, want 3 despite duplicate targets and repeated listings", len(catalog.Lots))
	}
	for i, want := range []string{"1", "2", "3"} {
		lot := catalog.Lots[i]
		if lot.LotNumber != want {
			t.Errorf("lots[%d].LotNumber = %q, want %q", i, lot.LotNumber, want)
		}
		if lot.Title != "Widget "+want {
			t.Errorf("lots[%d].Title = %q, want from its own detail page", i, lot.Title)
		}
		wantBids := map[string]int{"1": 1500, "2": 2500, "3": 3500}
		if lot.CurrentBid != wantBids[want] {
			t.Errorf("lots[%d].CurrentBid = %d, want %d", i, lot.CurrentBid, wantBids[want])
		}
		if lot.URL != "http://auction.test/lot/"+want {
			t.Errorf("lots[%d].URL = %q", i, lot.URL)
		}
	}

	if lotEvents != 3 {
		t.Errorf("lot progress events = %d, want 3", lotEvents)
	}
	info := transport.GetCallCountInfo()
	for _, num := range []string{"1", "2", "3"} {
		if info["GET http://auction.test/lot/"+num] != 1 {
			t.Errorf("lot %s fetched %d times, want 1", num, info["GET http://auction.test/lot/"+num])
		}
	}
}

func TestScrapeCatalogAllLotsWhenNoTargets(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	transport.RegisterResponder("GET", pageURL(1),
		httpmock.NewStringResponder(200, catalogPage(map[string]string{"10": "10", "2": "2"})))
	transport.RegisterResponder("GET", pageURL(2),
		httpmock.NewStringResponder(200, catalogPage(map[string]string{"1": "1"})))
	transport.RegisterResponder("GET", pageURL(3),
		httpmock.NewStringResponder(200, catalogPage(map[string]string{"1": "1"})))
	for _, num := range []string{"1", "2", "10"} {
		transport.RegisterResponder("GET", "http://auction.test/lot/"+num,
			httpmock.NewStringResponder(200, lotPage(num, "$20.00", 0)))
	}

	catalog, err := s.ScrapeCatalog(context.Background(), testCatalogURL, nil)
	if err != nil {
		t.Fatalf("scrape catalog: %v", err)
	}

	var order []string
	for _, lot := range catalog.Lots {
		order = append(order, lot.LotNumber)
	}
	want := []string{"1", "2", "10"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("lot order = %v, want numeric ascending %v", order, want)
	}
}

func TestScrapeCatalogUnresolvedTargetFallsBack(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	page1 := `<html><body><h1>Spring Auction</h1>
		<div class="card"><a href="/lot/1">Lot #1</a></div>
	</body></html>`
	transport.RegisterResponder("GET", pageURL(1), httpmock.NewStringResponder(200, page1))
	transport.RegisterResponder("GET", pageURL(2), httpmock.NewStringResponder(http.StatusNotFound, ""))

	catalog, err := s.ScrapeCatalog(context.Background(), testCatalogURL, []string{"99"})
	if err != nil {
		t.Fatalf("scrape catalog: %v", err)
	}
	if len(catalog.Lots) != 1 {
		t.Fatalf("lots = %d, want 1", len(catalog.Lots))
	}
	lot := catalog.Lots[0]
	if lot.LotNumber != "99" {
		t.Errorf("lot number = %q, want 99", lot.LotNumber)
	}
	// Degraded record: the catalog page stood in for the missing lot
	// page, so its title leaks through.
	if lot.URL != testCatalogURL {
		t.Errorf("lot URL = %q, want the catalog URL fallback", lot.URL)
	}
	if lot.Title != "Spring Auction" {
		t.Errorf("lot title = %q", lot.Title)
	}
}

func TestScrapeCatalogLotFetchFailureFailsCall(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	transport.RegisterResponder("GET", pageURL(1),
		httpmock.NewStringResponder(200, catalogPage(map[string]string{"1": "1"})))
	transport.RegisterResponder("GET", "http://auction.test/lot/1",
		httpmock.NewStringResponder(http.StatusForbidden, ""))

	_, err := s.ScrapeCatalog(context.Background(), testCatalogURL, []string{"1"})
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusForbidden {
		t.Fatalf("error = %v, want *FetchError with 403", err)
	}
}

func TestScrapeLotCapsImages(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	transport.RegisterResponder("GET", "http://auction.test/lot/7",
		httpmock.NewStringResponder(200, lotPage("7", "$12.50", 5)))

	lot, err := s.ScrapeLot(context.Background(), "http://auction.test/lot/7")
	if err != nil {
		t.Fatalf("scrape lot: %v", err)
	}
	if lot.Title != "Widget 7" {
		t.Errorf("title = %q", lot.Title)
	}
	if lot.CurrentBid != 1250 {
		t.Errorf("bid = %d, want 1250", lot.CurrentBid)
	}
	if len(lot.Images) != 3 {
		t.Fatalf("images = %d, want cap of 3", len(lot.Images))
	}
	for i, want := range []string{"7-1", "7-2", "7-3"} {
		if lot.Images[i] != "http://auction.test/img/"+want+".jpg" {
			t.Errorf("images[%d] = %q, want first-discovered order", i, lot.Images[i])
		}
	}
	if lot.TaxRate != nil {
		t.Errorf("tax rate must never be scraped")
	}
}

func TestScrapeLotTitleFallback(t *testing.T) {
	s, transport := newTestScraper(t, config.DefaultConfig())

	transport.RegisterResponder("GET", pageURL(1),
		httpmock.NewStringResponder(200, `<html><body><div class="card"><a href="/lot/4">Lot #4</a></div></body></html>`))
	transport.RegisterResponder("GET", "http://auction.test/lot/4",
		httpmock.NewStringResponder(200, `<html><body><p>nothing to extract</p></body></html>`))

	catalog, err := s.ScrapeCatalog(context.Background(), testCatalogURL, []string{"4"})
	if err != nil {
		t.Fatalf("scrape catalog: %v", err)
	}
	if got := catalog.Lots[0].Title; got != "Lot 4" {
		t.Errorf("title = %q, want synthesized %q", got, "Lot 4")
	}
}
