// Package ingest loads markdown documentation into the two retrieval
// stores: chunks with embeddings into the vector store, and extracted
// facts into the symbolic knowledge base.
package ingest

import (
	"regexp"
	"strings"
)

// Chunk is one slice of a document prepared for embedding.
type Chunk struct {
	Content string
	Heading string
	Index   int
}

var (
	headingRe  = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	codeFence  = "```"
	linkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
)

// SplitMarkdown breaks a markdown document into chunks of roughly size
// characters with the given overlap carried between consecutive chunks.
// Each chunk records the heading in effect where it starts, so search
// results can point at a document section rather than just a file.
func SplitMarkdown(content string, size, overlap int) []Chunk {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	paragraphs := splitParagraphs(content)
	var chunks []Chunk
	var current strings.Builder
	currentHeading := ""
	activeHeading := ""

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, Chunk{Content: text, Heading: currentHeading, Index: len(chunks)})
		}
		current.Reset()
	}

	for _, para := range paragraphs {
		if m := headingRe.FindStringSubmatch(firstLine(para)); m != nil {
			activeHeading = strings.TrimSpace(m[1])
		}
		cleaned := stripMarkdown(para)
		if cleaned == "" {
			continue
		}

		if current.Len() == 0 {
			currentHeading = activeHeading
		}
		if current.Len() > 0 && current.Len()+len(cleaned)+2 > size {
			tail := overlapTail(current.String(), overlap)
			flush()
			currentHeading = activeHeading
			if tail != "" {
				current.WriteString(tail)
				current.WriteString("\n\n")
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(cleaned)
	}
	flush()
	return chunks
}

// splitParagraphs splits on blank lines, keeping fenced code blocks
// intact as single paragraphs.
func splitParagraphs(content string) []string {
	lines := strings.Split(content, "\n")
	var paragraphs []string
	var current []string
	inFence := false

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), codeFence) {
			inFence = !inFence
			current = append(current, line)
			if !inFence {
				flush()
			}
			continue
		}
		if !inFence && strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

// stripMarkdown reduces markdown syntax to plain text suitable for
// embedding: headings keep their text, links keep their labels, and
// emphasis markers are dropped. Code fences keep their body.
func stripMarkdown(para string) string {
	var out []string
	for _, line := range strings.Split(para, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, codeFence) {
			continue
		}
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			trimmed = m[1]
		}
		trimmed = linkRe.ReplaceAllString(trimmed, "$1")
		trimmed = emphasisRe.ReplaceAllString(trimmed, "$2")
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func overlapTail(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return ""
	}
	tail := text[len(text)-overlap:]
	// Cut at a word boundary so the overlap does not start mid-word.
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
