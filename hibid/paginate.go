package hibid

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// withPage rewrites catalogURL for the 1-indexed apage pagination
// convention: page 1 is the bare URL (any stale apage parameter is
// stripped), page N >= 2 sets apage=N.
func withPage(catalogURL string, page int) string {
	u, err := url.Parse(catalogURL)
	if err != nil {
		return catalogURL
	}
	q := u.Query()
	if page <= 1 {
		if _, ok := q["apage"]; !ok {
			return catalogURL
		}
		q.Del("apage")
	} else {
		q.Set("apage", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// eachPage fetches catalog pages sequentially, invoking fn on each
// normalized page until fn declines more pages, a fetch comes back
// >= 400 (treated as the end of the catalog, not a failure), or the
// MaxPages cap is hit. A courtesy delay separates successive fetches.
// Pagination fetches do not retry; transient failures just end the walk.
func (s *Scraper) eachPage(ctx context.Context, catalogURL string, fn func(page int, pg *Page) (bool, error)) error {
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := withPage(catalogURL, page)
		res, err := s.client.Get(ctx, pageURL, s.cfg.Timeout, "page")
		if err != nil {
			return err
		}
		if res.StatusCode >= http.StatusBadRequest {
			slog.Debug("pagination stopped on error status",
				slog.String("url", pageURL),
				slog.Int("status", res.StatusCode),
			)
			return nil
		}
		s.Metrics.IncPages()

		pg, err := Normalize(res.Body, pageURL)
		if err != nil {
			return err
		}
		more, err := fn(page, pg)
		if err != nil || !more {
			return err
		}

		if s.cfg.PageDelay > 0 && page < s.cfg.MaxPages {
			s.client.sleep(s.cfg.PageDelay)
		}
	}
	return nil
}
