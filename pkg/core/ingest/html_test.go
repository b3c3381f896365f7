package ingest

import (
	"strings"
	"testing"
)

func TestExtractPages_SplitsOnPageContainers(t *testing.T) {
	html := `<html><body>
		<div class="page"><p>BALANCE SHEET</p><p>Total assets 1,200</p></div>
		<div class="page"><p>Note 10: Investment Property</p><p>Fair value details here.</p></div>
	</body></html>`

	pages, err := NewHTMLExtractor().ExtractPages(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ExtractPages returned error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("page numbers = %d, %d", pages[0].Number, pages[1].Number)
	}
	if !strings.Contains(pages[1].Text, "Note 10: Investment Property") {
		t.Errorf("page 2 text = %q", pages[1].Text)
	}
}

func TestExtractPages_SplitsOnHorizontalRules(t *testing.T) {
	html := `<html><body>
		<p>First page content about revenue recognition policies.</p>
		<hr/>
		<p>Second page content about borrowings and interest.</p>
	</body></html>`

	pages, err := NewHTMLExtractor().ExtractPages(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ExtractPages returned error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if !strings.Contains(pages[0].Text, "revenue recognition") || !strings.Contains(pages[1].Text, "borrowings") {
		t.Errorf("pages split wrong: %q / %q", pages[0].Text, pages[1].Text)
	}
}

func TestExtractPages_StripsNoise(t *testing.T) {
	html := `<html><head><title>Filing</title></head><body>
		<script>var x = 1;</script>
		<style>p { color: red; }</style>
		<p style="display:none">hidden text</p>
		<p>Visible disclosure text about fair value measurement.</p>
	</body></html>`

	pages, err := NewHTMLExtractor().ExtractPages(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ExtractPages returned error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	text := pages[0].Text
	for _, bad := range []string{"var x", "color: red", "hidden text"} {
		if strings.Contains(text, bad) {
			t.Errorf("noise %q survived: %q", bad, text)
		}
	}
	if !strings.Contains(text, "fair value measurement") {
		t.Errorf("content lost: %q", text)
	}
}

func TestExtractPages_EmptyDocument(t *testing.T) {
	if _, err := NewHTMLExtractor().ExtractPages(strings.NewReader("<html><body></body></html>")); err == nil {
		t.Fatal("expected error for empty document")
	}
}
