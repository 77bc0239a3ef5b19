package hibid

// Phase identifies which stage of a scrape a progress event belongs to.
type Phase string

const (
	PhaseCatalog  Phase = "catalog"
	PhasePaginate Phase = "paginate"
	PhaseLot      Phase = "lot"
)

// Progress is one progress event pushed to the caller-supplied sink.
type Progress struct {
	Phase     Phase
	Page      int
	Found     int
	Total     int
	LotNumber string
	Message   string
}

// ProgressFunc receives progress events during a scrape. It is invoked
// synchronously from the scraping goroutine, so implementations must not
// block.
type ProgressFunc func(Progress)

func (s *Scraper) emit(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}
