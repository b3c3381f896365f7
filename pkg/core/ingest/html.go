package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"finrag/pkg/models"
)

// HTMLExtractor turns an HTML filing into extracted pages. Filings delivered
// as HTML usually mark page breaks with dedicated containers or <hr>
// elements; when no marker is found the whole body becomes a single page.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// pageBreakSelector matches the page containers the common filing templates
// use.
const pageBreakSelector = "div.page, div[data-page], div[style*='page-break-before'], div[style*='page-break-after']"

// ExtractPages parses the HTML, strips noise, and returns the text split into
// pages. Page numbers are sequential from 1.
func (e *HTMLExtractor) ExtractPages(r io.Reader) ([]models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	e.removeNoise(doc)

	var texts []string
	containers := doc.Find(pageBreakSelector)
	if containers.Length() > 1 {
		containers.Each(func(i int, sel *goquery.Selection) {
			texts = append(texts, blockText(sel))
		})
	} else if parts := splitOnRules(doc); len(parts) > 1 {
		texts = parts
	} else {
		texts = []string{blockText(doc.Find("body"))}
	}

	var pages []models.Page
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		pages = append(pages, models.Page{Number: len(pages) + 1, Text: t})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text content in HTML document")
	}
	return pages, nil
}

// removeNoise strips elements that add nothing for retrieval.
func (e *HTMLExtractor) removeNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript, head").Remove()
	doc.Find("[hidden], [style*='display:none'], [style*='display: none']").Remove()

	// Spacer images
	doc.Find("img").Each(func(i int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		width, _ := sel.Attr("width")
		height, _ := sel.Attr("height")
		if src == "" || strings.Contains(src, "spacer") || strings.Contains(src, "blank") ||
			width == "1" || height == "1" {
			sel.Remove()
		}
	})

	// Inline XBRL tags keep their text content
	doc.Find("ix\\:nonFraction, ix\\:nonNumeric, ix\\:fraction").Each(func(i int, sel *goquery.Selection) {
		sel.ReplaceWithHtml(sel.Text())
	})
}

// splitOnRules splits the body text on <hr> page separators.
func splitOnRules(doc *goquery.Document) []string {
	body := doc.Find("body")
	if body.Find("hr").Length() == 0 {
		return nil
	}
	const marker = "@@PAGE-BREAK@@"
	body.Find("hr").ReplaceWithHtml("<p>" + marker + "</p>")
	return strings.Split(blockText(body), marker)
}

// blockText renders a selection as plain text with block elements separated
// by blank lines, so downstream boundary detection sees paragraph structure.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(i int, block *goquery.Selection) {
		// Leaf blocks only, so nested containers don't duplicate text.
		if block.Find("p, div, li, tr").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(block.Text()), " ")
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
	if b.Len() == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(b.String())
}
