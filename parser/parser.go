// Package parser holds the pure text-parsing helpers shared by the
// scraper's extractors and the output pipeline.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fliptrack/fliptrack/models"
)

var (
	moneyRx   = regexp.MustCompile(`(?i)(?:CAD|C\$)?\s*[$€£]?\s*((?:\d{1,3}(?:[, ]\d{3})+|\d+)(?:\.\d{1,2})?)`)
	percentRx = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	digitsRx  = regexp.MustCompile(`[^\d.]`)
)

// ParseMoneyCents extracts the first money-like numeral from s and returns
// it in integer cents. Currency symbols, thousands separators, NBSP and
// thin spaces are tolerated. Returns false when s holds no parseable amount.
func ParseMoneyCents(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer("\u00a0", " ", "\u2009", " ").Replace(s)

	m := moneyRx.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	val := digitsRx.ReplaceAllString(m[1], "")
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f * 100)), true
}

// ParsePercent extracts the first "N%" / "N.N %" value from s.
func ParsePercent(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	m := percentRx.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// StripLeadingZeros normalizes a lot number so "020" and "20" compare
// equal. A lot number of all zeros collapses to the empty string, which
// matches how callers key their lot maps.
func StripLeadingZeros(lotNumber string) string {
	return strings.TrimLeft(lotNumber, "0")
}

// SortLotNumbers deduplicates and orders lot numbers numerically
// ascending, with values that do not parse as integers sorted last
// (lexicographically among themselves) for deterministic processing.
func SortLotNumbers(lotNumbers []string) []string {
	seen := make(map[string]struct{}, len(lotNumbers))
	out := make([]string, 0, len(lotNumbers))
	for _, n := range lotNumbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ni, oki := lotSortKey(out[i])
		nj, okj := lotSortKey(out[j])
		switch {
		case oki && okj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func lotSortKey(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateLot ensures the scraper produced the fields downstream writers
// rely on.
func ValidateLot(l *models.Lot) error {
	if l == nil {
		return fmt.Errorf("lot is nil")
	}
	if strings.TrimSpace(l.URL) == "" {
		return fmt.Errorf("lot missing url")
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("lot missing title for %s", l.URL)
	}
	if l.CurrentBid < 0 {
		return fmt.Errorf("lot has negative bid for %s", l.URL)
	}
	return nil
}
