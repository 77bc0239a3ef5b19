package hibid

import (
	"encoding/json"
	stdhtml "html"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/fliptrack/fliptrack/parser"
)

// LotReference pairs a lot number with the absolute URL of its detail
// page, as discovered on a catalog page.
type LotReference struct {
	LotNumber string
	URL       string
}

var (
	siteSuffixRx  = regexp.MustCompile(`(?i)\s*-\s*HiBid.*$`)
	descLabelRx   = regexp.MustCompile(`(?i)\bdescription\b`)
	lotNumberRx   = regexp.MustCompile(`(?i)\bLot\s*#?\s*(\d+)\b`)
	imageSuffixRx = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)(\?|$)`)

	lotEndLabelRx     = regexp.MustCompile(`(?i)(end|close|closing)`)
	catalogEndLabelRx = regexp.MustCompile(`(?i)(end|close|closing|bidding ends|lots start closing)`)
	lotEndStampRx     = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*(am|pm)|\d{4}-\d{2}-\d{2})`)
	catalogEndStampRx = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*(am|pm)|\d{4}-\d{2}-\d{2}|\bET\b|\bEST\b|\bEDT\b)`)
)

// strategy tries one structural pattern against a page and reports
// whether it produced a confident match.
type strategy[T any] func(*Page) (T, bool)

// firstMatch runs strategies in priority order and returns the first hit.
func firstMatch[T any](p *Page, strategies []strategy[T]) (T, bool) {
	for _, try := range strategies {
		if v, ok := try(p); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ExtractTitle pulls a lot page's title: first h1, else the <title> tag
// with the site-name suffix stripped, else og:title.
func ExtractTitle(p *Page) string {
	title, _ := firstMatch(p, []strategy[string]{
		func(p *Page) (string, bool) {
			t := collapsedText(p.doc.Find("h1").First())
			return t, t != ""
		},
		func(p *Page) (string, bool) {
			raw := strings.TrimSpace(p.doc.Find("title").First().Text())
			if raw == "" {
				return "", false
			}
			t := strings.TrimSpace(siteSuffixRx.ReplaceAllString(raw, ""))
			return t, t != ""
		},
		metaContent(`meta[property="og:title"]`),
	})
	return title
}

// ExtractCatalogTitle pulls a catalog page's title, preferring og:title
// over the first page heading.
func ExtractCatalogTitle(p *Page) string {
	title, _ := firstMatch(p, []strategy[string]{
		metaContent(`meta[property="og:title"]`),
		func(p *Page) (string, bool) {
			t := collapsedText(p.doc.Find("h1, h2").First())
			return t, t != ""
		},
	})
	return title
}

func metaContent(selector string) strategy[string] {
	return func(p *Page) (string, bool) {
		c, ok := p.doc.Find(selector).First().Attr("content")
		if !ok {
			return "", false
		}
		c = strings.TrimSpace(c)
		return c, c != ""
	}
}

// ExtractDescription resolves the lot description with priority:
// label/value structures inside "information" containers (table rows,
// then dt/dd pairs, then label proximity), falling back to
// description-hinted blocks, JSON-LD, and og:description, picking the
// longest distinct candidate.
func ExtractDescription(p *Page) string {
	for _, cont := range infoContainers(p) {
		if v, ok := tableLabelValue(cont, descLabelRx); ok {
			return v
		}
		if v, ok := dlLabelValue(cont, descLabelRx); ok {
			return v
		}
		if v, ok := proximityLabelValue(cont, descLabelRx); ok {
			return v
		}
	}

	var candidates []string
	selectors := []string{
		"[id*=description]", "[class*=description]",
		".lot-description", ".lotDetails", ".description",
		".lot-details", ".item-description",
	}
	for _, css := range selectors {
		p.doc.Find(css).Each(func(_ int, el *goquery.Selection) {
			if t := brokenText(el); len(t) > 20 {
				candidates = append(candidates, t)
			}
		})
	}

	if len(candidates) == 0 {
		for _, block := range p.jsonLDBlocks() {
			if d, ok := block["description"].(string); ok {
				if t := strings.TrimSpace(stdhtml.UnescapeString(d)); t != "" {
					candidates = append(candidates, t)
				}
			}
		}
	}

	if len(candidates) == 0 {
		if c, ok := metaContent(`meta[property="og:description"]`)(p); ok {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		return ""
	}
	return pickLongest(candidates)
}

// pickLongest keeps the longest distinct candidate and flattens it to a
// single-line paragraph.
func pickLongest(candidates []string) string {
	uniq := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		if len(uniq[i]) != len(uniq[j]) {
			return len(uniq[i]) > len(uniq[j])
		}
		return uniq[i] < uniq[j]
	})
	best := strings.ReplaceAll(uniq[0], "\r", "")
	return strings.TrimSpace(wsRx.ReplaceAllString(best, " "))
}

// infoContainers narrows extraction scope to "Information" sections when
// the page has them, always keeping the whole document as a last resort.
func infoContainers(p *Page) []*goquery.Selection {
	selectors := []string{
		"[id*=information]", "[class*=information]",
		".lot-information", ".lotInfo", ".lot-info",
		".lotDetails", ".lot-details", ".item-information",
	}

	var out []*goquery.Selection
	seen := make(map[*html.Node]struct{})
	add := func(sel *goquery.Selection) {
		for _, n := range sel.Nodes {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, goquery.NewDocumentFromNode(n).Selection)
		}
	}

	for _, css := range selectors {
		add(p.doc.Find(css))
	}

	p.doc.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
		if !strings.Contains(strings.ToLower(collapsedText(h)), "information") {
			return
		}
		wrapper := h.Closest("section, div, article")
		if wrapper.Length() == 0 {
			wrapper = h.Parent()
		}
		add(wrapper)
	})

	out = append(out, p.doc.Selection)
	return out
}

// tableLabelValue scans two-column table rows for a first cell matching
// labelRx, returning the second cell with soft line breaks preserved.
func tableLabelValue(cont *goquery.Selection, labelRx *regexp.Regexp) (string, bool) {
	var val string
	cont.Find("table tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return true
		}
		key := strings.ToLower(collapsedText(cells.Eq(0)))
		if !labelRx.MatchString(key) {
			return true
		}
		if v := brokenText(cells.Eq(1)); v != "" {
			val = v
			return false
		}
		return true
	})
	return val, val != ""
}

// dlLabelValue scans definition lists for a dt matching labelRx paired
// with a non-empty dd.
func dlLabelValue(cont *goquery.Selection, labelRx *regexp.Regexp) (string, bool) {
	var val string
	cont.Find("dl dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		key := strings.ToLower(collapsedText(dt))
		if !labelRx.MatchString(key) {
			return true
		}
		dd := dt.NextAllFiltered("dd").First()
		if v := brokenText(dd); v != "" {
			val = v
			return false
		}
		return true
	})
	return val, val != ""
}

// proximityLabelValue finds a text node matching labelRx and takes the
// text of the node's next element sibling, else the parent's next
// element sibling.
func proximityLabelValue(cont *goquery.Selection, labelRx *regexp.Regexp) (string, bool) {
	var val string
	for _, root := range cont.Nodes {
		eachTextNode(root, func(tn *html.Node) bool {
			if !labelRx.MatchString(strings.ToLower(tn.Data)) {
				return true
			}
			if sib := nextElementSibling(tn); sib != nil {
				if v := brokenTextNode(sib); v != "" {
					val = v
					return false
				}
			}
			if tn.Parent != nil {
				if sib := nextElementSibling(tn.Parent); sib != nil {
					if v := brokenTextNode(sib); v != "" {
						val = v
						return false
					}
				}
			}
			return true
		})
		if val != "" {
			break
		}
	}
	return val, val != ""
}

// bidLabels in priority order; the first label yielding a parseable,
// non-zero amount wins.
var bidLabels = []string{
	"Current Bid", "High Bid", "Winning Bid", "Max Bid",
	"Price Realized", "Hammer", "Bid Price", "Current Price", "Price",
}

var bidSelectors = []string{
	".currentbid, .currentBid, .current-bid, [class*=current][class*=bid]",
	"[id*=current][id*=bid]",
	"[data-current-bid]",
}

// ExtractCurrentBid resolves the current bid in integer cents: direct
// selector patterns first, then a label scan trying the matched text
// node itself, its parent, the parent's next sibling, and finally a few
// descendants of the parent.
func ExtractCurrentBid(p *Page) (int, bool) {
	for _, css := range bidSelectors {
		el := p.doc.Find(css).First()
		if el.Length() == 0 {
			continue
		}
		if cents, ok := parser.ParseMoneyCents(collapsedText(el)); ok && cents > 0 {
			return cents, true
		}
	}

	for _, label := range bidLabels {
		needle := strings.ToLower(label)
		cents, found := 0, false
		for _, root := range p.doc.Selection.Nodes {
			eachTextNode(root, func(tn *html.Node) bool {
				if !strings.Contains(strings.ToLower(tn.Data), needle) {
					return true
				}
				if c, ok := moneyFrom(tn.Data); ok {
					cents, found = c, true
					return false
				}
				parent := tn.Parent
				if parent == nil {
					return true
				}
				if c, ok := moneyFrom(collapsedTextNode(parent)); ok {
					cents, found = c, true
					return false
				}
				if sib := nextElementSibling(parent); sib != nil {
					if c, ok := moneyFrom(collapsedTextNode(sib)); ok {
						cents, found = c, true
						return false
					}
				}
				for _, sub := range descendantElements(parent, 4) {
					if c, ok := moneyFrom(collapsedTextNode(sub)); ok {
						cents, found = c, true
						return false
					}
				}
				return true
			})
			if found {
				return cents, true
			}
		}
	}
	return 0, false
}

// moneyFrom treats a parsed amount of zero as a miss so the cascade
// keeps looking for a real figure.
func moneyFrom(s string) (int, bool) {
	cents, ok := parser.ParseMoneyCents(s)
	if !ok || cents <= 0 {
		return 0, false
	}
	return cents, true
}

// ExtractBuyerPremium finds the first text node mentioning "premium" and
// parses a percentage from it or its parent.
func ExtractBuyerPremium(p *Page) (float64, bool) {
	pct, found := 0.0, false
	for _, root := range p.doc.Selection.Nodes {
		eachTextNode(root, func(tn *html.Node) bool {
			if !strings.Contains(strings.ToLower(tn.Data), "premium") {
				return true
			}
			if v, ok := parser.ParsePercent(tn.Data); ok {
				pct, found = v, true
				return false
			}
			if tn.Parent != nil {
				if v, ok := parser.ParsePercent(collapsedTextNode(tn.Parent)); ok {
					pct, found = v, true
					return false
				}
			}
			return true
		})
		if found {
			break
		}
	}
	return pct, found
}

// ExtractImages collects candidate image URLs: hint-bearing <img> tags,
// the highest-resolution srcset entry, JSON-LD image fields, and
// og:image metas, deduplicated in first-seen order and filtered to real
// image suffixes. The caller applies any count cap.
func ExtractImages(p *Page) []string {
	var urls []string

	p.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		if src != "" {
			cls := strings.ToLower(img.AttrOr("class", ""))
			alt := strings.ToLower(img.AttrOr("alt", ""))
			if strings.Contains(cls, "lot") || strings.Contains(cls, "gallery") ||
				strings.Contains(cls, "thumb") || strings.Contains(alt, "lot") {
				urls = append(urls, p.Resolve(src))
			}
		}
		if srcset := img.AttrOr("srcset", ""); srcset != "" {
			var last string
			for _, part := range strings.Split(srcset, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				last = strings.Fields(part)[0]
			}
			if last != "" {
				urls = append(urls, p.Resolve(last))
			}
		}
	})

	for _, block := range p.jsonLDBlocks() {
		switch img := block["image"].(type) {
		case string:
			urls = append(urls, p.Resolve(img))
		case []any:
			for _, v := range img {
				if s, ok := v.(string); ok {
					urls = append(urls, p.Resolve(s))
				}
			}
		}
	}

	p.doc.Find(`meta[property="og:image"]`).Each(func(_ int, m *goquery.Selection) {
		if c := m.AttrOr("content", ""); c != "" {
			urls = append(urls, p.Resolve(c))
		}
	})

	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if !imageSuffixRx.MatchString(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ExtractEndTimeText finds a short piece of text mentioning the lot's
// closing alongside a clock time or ISO date.
func ExtractEndTimeText(p *Page) string {
	return endTimeText(p, lotEndLabelRx, lotEndStampRx)
}

// ExtractCatalogEndTime is the catalog-page variant, which also accepts
// "bidding ends" phrasing and bare eastern-timezone markers.
func ExtractCatalogEndTime(p *Page) string {
	return endTimeText(p, catalogEndLabelRx, catalogEndStampRx)
}

func endTimeText(p *Page, labelRx, stampRx *regexp.Regexp) string {
	var found string
	p.doc.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		txt := collapsedText(el)
		if txt == "" || len(txt) > 200 {
			return true
		}
		if labelRx.MatchString(txt) && stampRx.MatchString(txt) {
			found = txt
			return false
		}
		return true
	})
	return found
}

// ExtractLotLinks discovers lot-number/URL pairs on a catalog page.
// Primary heuristic: anchors into /lot/ with "Lot #N" nearby; fallback:
// any element mentioning "Lot #N" that contains a /lot/ anchor.
func ExtractLotLinks(p *Page) []LotReference {
	var pairs []LotReference

	p.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if !strings.Contains(href, "/lot/") {
			return
		}
		context := collapsedText(a) + " " + collapsedText(a.Parent())
		if runes := []rune(context); len(runes) > 800 {
			context = string(runes[:800])
		}
		if m := lotNumberRx.FindStringSubmatch(context); m != nil {
			pairs = append(pairs, LotReference{LotNumber: m[1], URL: p.Resolve(href)})
		}
	})

	if len(pairs) == 0 {
		p.doc.Find("*").Each(func(_ int, el *goquery.Selection) {
			m := lotNumberRx.FindStringSubmatch(collapsedText(el))
			if m == nil {
				return
			}
			href := el.Find(`a[href*="/lot/"]`).First().AttrOr("href", "")
			if href == "" {
				return
			}
			pairs = append(pairs, LotReference{LotNumber: m[1], URL: p.Resolve(href)})
		})
	}

	seen := make(map[LotReference]struct{}, len(pairs))
	var out []LotReference
	for _, pr := range pairs {
		if _, ok := seen[pr]; ok {
			continue
		}
		seen[pr] = struct{}{}
		out = append(out, pr)
	}
	return out
}

func (p *Page) jsonLDBlocks() []map[string]any {
	var blocks []map[string]any
	for _, raw := range p.jsonLD {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		switch t := v.(type) {
		case []any:
			for _, e := range t {
				if m, ok := e.(map[string]any); ok {
					blocks = append(blocks, m)
				}
			}
		case map[string]any:
			blocks = append(blocks, t)
		}
	}
	return blocks
}
