package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fliptrack/fliptrack/config"
	"github.com/fliptrack/fliptrack/models"
)

type collectingWriter struct {
	mu   sync.Mutex
	lots []*models.Lot
}

func (cw *collectingWriter) Write(lots []*models.Lot) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.lots = append(cw.lots, lots...)
	return nil
}

func (cw *collectingWriter) Close() error    { return nil }
func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.lots)
}

func testLot(num, url string) *models.Lot {
	return &models.Lot{
		LotNumber:  num,
		Title:      "Widget " + num,
		CurrentBid: 1500,
		URL:        url,
		ScrapedAt:  time.Unix(0, 0),
	}
}

func TestPipelineValidatesAndDedupes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &collectingWriter{}
	p, err := NewPipeline(writer, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	lots := []*models.Lot{
		testLot("1", "http://auction.test/lot/1"),
		testLot("1", "http://auction.test/lot/1"), // duplicate
		testLot("2", "http://auction.test/lot/2"),
		{LotNumber: "3", URL: "http://auction.test/lot/3"}, // missing title
	}
	for _, lot := range lots {
		if err := p.Process(lot); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.Count(); got != 2 {
		t.Fatalf("written = %d, want 2", got)
	}

	metrics := p.GetMetrics()
	if processed := metrics["processed_lots"].(int64); processed != 2 {
		t.Errorf("processed_lots = %d, want 2", processed)
	}
	validation := metrics["validation_errors"].(map[string]int)
	if validation["duplicate_lot"] != 1 {
		t.Errorf("duplicate_lot = %d, want 1", validation["duplicate_lot"])
	}
	if validation["invalid_record"] != 1 {
		t.Errorf("invalid_record = %d, want 1", validation["invalid_record"])
	}
}

func TestPipelineRejectsAfterClose(t *testing.T) {
	writer := &collectingWriter{}
	p, err := NewPipeline(writer, config.DefaultConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(testLot("1", "http://auction.test/lot/1")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]*models.Lot) error { return errors.New("disk full") }
func (failingWriter) Close() error              { return nil }
func (failingWriter) Validate() error           { return nil }

func TestPipelineSurfacesWriterError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	p, err := NewPipeline(failingWriter{}, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	// The write error may land before or after Process returns; Close
	// must surface it either way.
	_ = p.Process(testLot("1", "http://auction.test/lot/1"))
	if err := p.Close(); err == nil {
		t.Fatalf("expected writer error from Close")
	}
}

func TestPipelineNilLotIgnored(t *testing.T) {
	writer := &collectingWriter{}
	p, err := NewPipeline(writer, config.DefaultConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	if err := p.Process(nil); err != nil {
		t.Fatalf("nil lot should be a no-op: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if writer.Count() != 0 {
		t.Fatalf("nothing should be written")
	}
}
