package ingest

import (
	"strings"
	"testing"
)

func TestSplitMarkdownTracksHeadings(t *testing.T) {
	doc := "# Payments API\n\nCreate and capture payments.\n\n## Rate Limits\n\nThe free tier allows 60 requests per minute."

	chunks := SplitMarkdown(doc, 1500, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for a small doc, got %d", len(chunks))
	}
	if chunks[0].Heading != "Payments API" {
		t.Errorf("Heading = %q, want Payments API", chunks[0].Heading)
	}
	if !strings.Contains(chunks[0].Content, "60 requests per minute") {
		t.Errorf("chunk missing body text: %q", chunks[0].Content)
	}
	if strings.Contains(chunks[0].Content, "##") {
		t.Error("heading markers should be stripped")
	}
}

func TestSplitMarkdownRespectsSize(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Reference\n\n")
	for i := 0; i < 20; i++ {
		b.WriteString(strings.Repeat("Endpoint documentation paragraph with details. ", 4))
		b.WriteString("\n\n")
	}

	chunks := SplitMarkdown(b.String(), 500, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		// A single oversized paragraph may exceed the target, but
		// normal accumulation should stay near it.
		if len(c.Content) > 800 {
			t.Errorf("chunk %d is %d chars, want near 500", i, len(c.Content))
		}
	}
}

func TestSplitMarkdownOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(strings.Repeat("word ", 40))
		b.WriteString("\n\n")
	}

	chunks := SplitMarkdown(b.String(), 400, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0].Content[len(chunks[0].Content)-40:]
	if !strings.Contains(chunks[1].Content, strings.TrimSpace(tail)) {
		t.Error("second chunk should carry overlap from the first")
	}
}

func TestSplitMarkdownStripsLinksAndEmphasis(t *testing.T) {
	doc := "See the [rate limits](/docs/limits.md) page. This is **important** and _subtle_."

	chunks := SplitMarkdown(doc, 1500, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0].Content
	if strings.Contains(got, "](") || strings.Contains(got, "**") {
		t.Errorf("markdown syntax not stripped: %q", got)
	}
	if !strings.Contains(got, "rate limits") || !strings.Contains(got, "important") {
		t.Errorf("link label or emphasized text lost: %q", got)
	}
}

func TestSplitMarkdownKeepsCodeFencesTogether(t *testing.T) {
	doc := "# Example\n\nRequest:\n\n```\nPOST /v1/payments\n{\"amount\": 100}\n```\n\nDone."

	chunks := SplitMarkdown(doc, 1500, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "POST /v1/payments") {
		t.Errorf("code fence body lost: %q", chunks[0].Content)
	}
	if strings.Contains(chunks[0].Content, "```") {
		t.Error("fence markers should be stripped")
	}
}

func TestSplitMarkdownEmptyDoc(t *testing.T) {
	if chunks := SplitMarkdown("", 1500, 200); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty doc, got %d", len(chunks))
	}
	if chunks := SplitMarkdown("\n\n  \n", 1500, 200); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace doc, got %d", len(chunks))
	}
}
