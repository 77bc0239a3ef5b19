package hibid

import (
	"strings"
	"testing"
)

func mustNormalize(t *testing.T, html, requestURL string) *Page {
	t.Helper()
	pg, err := Normalize(html, requestURL)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return pg
}

func TestNormalizeStripsNoise(t *testing.T) {
	html := `<html><head>
		<script>var hidden = "SCRIPT NOISE";</script>
		<style>.x { color: red }</style>
	</head><body>
		<!-- COMMENT NOISE -->
		<noscript>NOSCRIPT NOISE</noscript>
		<template>TEMPLATE NOISE</template>
		<svg><text>SVG NOISE</text></svg>
		<p>Visible content</p>
	</body></html>`

	pg := mustNormalize(t, html, "http://auction.test/lot/1")
	text := collapsedText(pg.doc.Selection)
	for _, noise := range []string{"SCRIPT NOISE", "COMMENT NOISE", "NOSCRIPT NOISE", "TEMPLATE NOISE", "SVG NOISE", "color: red"} {
		if strings.Contains(text, noise) {
			t.Errorf("normalized text still contains %q", noise)
		}
	}
	if !strings.Contains(text, "Visible content") {
		t.Errorf("normalized text lost visible content: %q", text)
	}
}

func TestNormalizeCapturesJSONLD(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">{"@type":"Product","description":"From structured data"}</script>
	</head><body><p>Body</p></body></html>`

	pg := mustNormalize(t, html, "http://auction.test/lot/1")
	blocks := pg.jsonLDBlocks()
	if len(blocks) != 1 {
		t.Fatalf("jsonLDBlocks = %d, want 1", len(blocks))
	}
	if blocks[0]["description"] != "From structured data" {
		t.Fatalf("description = %v", blocks[0]["description"])
	}
	// The script element itself must still be gone from the tree.
	if pg.doc.Find("script").Length() != 0 {
		t.Fatalf("script elements should be removed after capture")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		request  string
		expected string
	}{
		{
			name:     "explicit base tag",
			html:     `<html><head><base href="https://cdn.auction.test/"></head><body></body></html>`,
			request:  "http://auction.test/lot/1",
			expected: "https://cdn.auction.test/",
		},
		{
			name:     "first absolute anchor origin",
			html:     `<html><body><a href="/relative">r</a><a href="https://www.auction.test/catalog/9">c</a></body></html>`,
			request:  "http://other.test/lot/1",
			expected: "https://www.auction.test",
		},
		{
			name:     "request url origin fallback",
			html:     `<html><body><a href="/relative">r</a></body></html>`,
			request:  "http://auction.test/lot/1?x=1",
			expected: "http://auction.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := mustNormalize(t, tt.html, tt.request)
			if got := pg.BaseURL(); got != tt.expected {
				t.Errorf("BaseURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	pg := mustNormalize(t, `<html><body></body></html>`, "http://auction.test/catalog/9")

	tests := []struct {
		href     string
		expected string
	}{
		{href: "/lot/12", expected: "http://auction.test/lot/12"},
		{href: "http://cdn.test/a.jpg", expected: "http://cdn.test/a.jpg"},
		{href: "  /lot/13 ", expected: "http://auction.test/lot/13"},
		{href: "", expected: ""},
	}
	for _, tt := range tests {
		if got := pg.Resolve(tt.href); got != tt.expected {
			t.Errorf("Resolve(%q) = %q, want %q", tt.href, got, tt.expected)
		}
	}
}

func TestBrokenTextPreservesLineBreaks(t *testing.T) {
	pg := mustNormalize(t, `<html><body><div id="v">Line one<br>Line two</div></body></html>`, "http://auction.test")
	got := brokenText(pg.doc.Find("#v"))
	if got != "Line one\nLine two" {
		t.Fatalf("brokenText = %q, want %q", got, "Line one\nLine two")
	}
}
