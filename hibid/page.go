package hibid

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is the normalized parse tree of one HTML document. Script, style,
// noscript, template and svg elements plus HTML comments are stripped up
// front so the text-based heuristics see only rendered content. JSON-LD
// payloads are captured before the scripts are dropped.
//
// A Page is owned by the extraction call that produced it and must not be
// shared across goroutines.
type Page struct {
	doc        *goquery.Document
	requestURL string
	jsonLD     []string
}

// Normalize parses htmlText into a noise-free Page. requestURL is the URL
// the document was fetched from; it anchors relative-link resolution when
// the markup itself offers no base.
func Normalize(htmlText, requestURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var jsonLD []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if txt := strings.TrimSpace(s.Text()); txt != "" {
			jsonLD = append(jsonLD, txt)
		}
	})

	doc.Find("script, style, noscript, template, svg").Remove()
	for _, root := range doc.Selection.Nodes {
		removeComments(root)
	}

	return &Page{doc: doc, requestURL: requestURL, jsonLD: jsonLD}, nil
}

func removeComments(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}

// BaseURL resolves the document's base: an explicit <base href>, else the
// origin of the first absolute anchor, else the origin of the request URL.
func (p *Page) BaseURL() string {
	if href, ok := p.doc.Find("base[href]").First().Attr("href"); ok && href != "" {
		return href
	}

	var origin string
	p.doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil && u.Scheme != "" && u.Host != "" {
			origin = u.Scheme + "://" + u.Host
			return false
		}
		return true
	})
	if origin != "" {
		return origin
	}

	if u, err := url.Parse(p.requestURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return ""
}

// Resolve turns an extracted href into an absolute URL against the page
// base. Already-absolute URLs pass through untouched.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(p.BaseURL())
	if err != nil || base.Scheme == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var wsRx = regexp.MustCompile(`\s+`)

// collapsedText mirrors a "join text chunks with spaces, collapse
// whitespace" reading of an element's content.
func collapsedText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var parts []string
	for _, n := range sel.Nodes {
		if t := joinText(n, " "); t != "" {
			parts = append(parts, t)
		}
	}
	return wsRx.ReplaceAllString(strings.Join(parts, " "), " ")
}

// brokenText preserves soft line breaks: every text chunk becomes one
// line, so <br> and block boundaries collapse to single newlines.
func brokenText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var parts []string
	for _, n := range sel.Nodes {
		if t := joinText(n, "\n"); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func joinText(n *html.Node, sep string) string {
	var chunks []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				chunks = append(chunks, t)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(chunks, sep)
}

// collapsedTextNode is collapsedText for a bare parse-tree node.
func collapsedTextNode(n *html.Node) string {
	if n == nil {
		return ""
	}
	return wsRx.ReplaceAllString(joinText(n, " "), " ")
}

// brokenTextNode is brokenText for a bare parse-tree node.
func brokenTextNode(n *html.Node) string {
	if n == nil {
		return ""
	}
	return joinText(n, "\n")
}

// eachTextNode visits every text node under root in document order until
// fn returns false.
func eachTextNode(root *html.Node, fn func(*html.Node) bool) bool {
	if root.Type == html.TextNode {
		return fn(root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !eachTextNode(c, fn) {
			return false
		}
	}
	return true
}

// nextElementSibling returns the first element sibling after n, or nil.
func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// descendantElements returns up to limit element descendants of n in
// document order.
func descendantElements(n *html.Node, limit int) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, c)
				if len(out) >= limit {
					return false
				}
			}
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(n)
	return out
}
