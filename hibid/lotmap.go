package hibid

import (
	"context"
	"strings"

	"github.com/fliptrack/fliptrack/parser"
)

// lotMap accumulates lot number → absolute lot URL. Keys differing only
// by leading zeros denote the same lot, so inserts are first-seen-wins
// under the zero-stripped canonical form.
type lotMap struct {
	found map[string]string
	canon map[string]string
}

func newLotMap() *lotMap {
	return &lotMap{
		found: make(map[string]string),
		canon: make(map[string]string),
	}
}

// insert records ref unless its lot is already known; reports whether
// the lot was new.
func (m *lotMap) insert(ref LotReference) bool {
	c := canonicalLotKey(ref.LotNumber)
	if _, ok := m.canon[c]; ok {
		return false
	}
	m.canon[c] = ref.URL
	m.found[ref.LotNumber] = ref.URL
	return true
}

// resolve looks up a lot number verbatim, then by canonical form.
func (m *lotMap) resolve(lotNumber string) (string, bool) {
	if u, ok := m.found[lotNumber]; ok {
		return u, true
	}
	u, ok := m.canon[canonicalLotKey(lotNumber)]
	return u, ok
}

func (m *lotMap) len() int {
	return len(m.canon)
}

// canonicalLotKey strips leading zeros but keeps a bare "0" distinct
// from the empty string.
func canonicalLotKey(lotNumber string) string {
	c := parser.StripLeadingZeros(lotNumber)
	if c == "" && lotNumber != "" {
		return "0"
	}
	return c
}

// CollectLotMap crawls catalog pages via apage pagination and
// accumulates lot number → absolute lot URL. The first URL seen for a
// lot wins; later pages and zero-variant spellings never override it.
// When targetLotNumbers is non-empty the crawl stops as soon as every
// target is present, either verbatim or with leading zeros stripped;
// otherwise it stops on the first page that contributes nothing new.
func (s *Scraper) CollectLotMap(ctx context.Context, catalogURL string, targetLotNumbers []string) (map[string]string, error) {
	targets := make(map[string]struct{}, len(targetLotNumbers))
	for _, t := range targetLotNumbers {
		if t = strings.TrimSpace(t); t != "" {
			targets[t] = struct{}{}
		}
	}

	lm := newLotMap()
	err := s.eachPage(ctx, catalogURL, func(page int, pg *Page) (bool, error) {
		newCount := 0
		for _, ref := range ExtractLotLinks(pg) {
			if lm.insert(ref) {
				newCount++
			}
		}
		s.emit(Progress{Phase: PhasePaginate, Page: page, Found: lm.len(), Total: len(targets)})

		if len(targets) > 0 && allTargetsFound(targets, lm) {
			return false, nil
		}
		// A page with nothing new after lots have been seen means the
		// catalog has been exhausted.
		if newCount == 0 && lm.len() > 0 {
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	// Alias each target given in a zero-variant spelling to the URL
	// recorded under the form actually seen.
	for t := range targets {
		if _, ok := lm.found[t]; ok {
			continue
		}
		if u, ok := lm.resolve(t); ok {
			lm.found[t] = u
		}
	}
	return lm.found, nil
}

func allTargetsFound(targets map[string]struct{}, lm *lotMap) bool {
	for t := range targets {
		if _, ok := lm.resolve(t); !ok {
			return false
		}
	}
	return true
}
