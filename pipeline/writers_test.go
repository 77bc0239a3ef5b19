package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fliptrack/fliptrack/models"
)

func sampleLot() *models.Lot {
	premium := 15.0
	return &models.Lot{
		LotNumber:    "12",
		Title:        "Vintage drill press",
		Description:  "Cast iron, runs on 120V",
		CurrentBid:   4500,
		BuyerPremium: &premium,
		ShippingCost: 1200,
		Images: []string{
			"http://cdn.test/a.jpg",
			"http://cdn.test/b.jpg",
		},
		EndTimeText: "Bidding ends 2024-05-01 at 6:00 pm",
		URL:         "http://auction.test/lot/12",
		ScrapedAt:   time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC),
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "lots.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Write([]*models.Lot{sampleLot()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want header plus one record", len(records))
	}
	if records[0][0] != "lot_number" || records[0][9] != "url" {
		t.Fatalf("unexpected header: %v", records[0])
	}

	row := records[1]
	if row[0] != "12" || row[1] != "Vintage drill press" {
		t.Errorf("identity columns wrong: %v", row)
	}
	if row[3] != "4500" {
		t.Errorf("current_bid = %q, want cents", row[3])
	}
	if row[4] != "15" {
		t.Errorf("buyer_premium = %q, want 15", row[4])
	}
	if row[5] != "" {
		t.Errorf("tax_rate = %q, want empty when unknown", row[5])
	}
	if row[7] != "http://cdn.test/a.jpg;http://cdn.test/b.jpg" {
		t.Errorf("images = %q", row[7])
	}
}

func TestLotCSVHeaderFollowsTags(t *testing.T) {
	want := []string{
		"lot_number", "title", "description", "current_bid",
		"buyer_premium", "tax_rate", "shipping_cost", "images",
		"end_time_text", "url", "scraped_at",
	}
	got := lotCSVHeader()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("header = %v, want %v", got, want)
	}

	// Every record column must have a header column; a field added to
	// models.Lot without a csv tag decision would show up here.
	path := filepath.Join(t.TempDir(), "lots.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Write([]*models.Lot{sampleLot()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// The reader locks the field count to the header row, so a
	// mismatched record row fails the ReadAll below.
	if _, err := reader.ReadAll(); err != nil {
		t.Fatalf("record width diverged from header: %v", err)
	}
}

func TestJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lots.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}
	lot := sampleLot()
	if err := w.Write([]*models.Lot{lot}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("expected one JSONL line")
	}
	var decoded models.Lot
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.LotNumber != lot.LotNumber || decoded.CurrentBid != lot.CurrentBid {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.TaxRate != nil {
		t.Errorf("tax_rate should round-trip as null")
	}
	if scanner.Scan() {
		t.Fatalf("expected exactly one line")
	}
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "lots.csv")
	jsonPath := filepath.Join(dir, "lots.json")

	w, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("new dual writer: %v", err)
	}
	if err := w.Write([]*models.Lot{sampleLot()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}
}
