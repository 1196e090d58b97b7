package semantic

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"drdoc/internal/logging"
)

// Citation points at a source document with its similarity score.
type Citation struct {
	Label     string  `json:"label"`
	Heading   string  `json:"heading,omitempty"`
	Relevance float64 `json:"relevance"`
}

// Response is the normalized output of a semantic retrieval.
type Response struct {
	AnswerText  string     `json:"answer_text"`
	Citations   []Citation `json:"citations"`
	ContextUsed int        `json:"context_used"`
	ModelSource string     `json:"model_source"`
}

// Synthesizer turns retrieved excerpts into a narrative answer.
// Optional: when absent the retriever answers extractively.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, excerpts []string) (string, error)
}

// Retriever is the semantic retrieval collaborator: embed the question,
// rank stored chunks, and produce an answer plus citations. "No match"
// is a normal response with empty citations, never an error.
type Retriever struct {
	store    *ChunkStore
	embedder EmbeddingEngine
	chat     Synthesizer // may be nil
	topK     int
}

// NewRetriever wires a retriever from its collaborators. chat may be
// nil for extractive-only answers.
func NewRetriever(store *ChunkStore, embedder EmbeddingEngine, chat Synthesizer, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{store: store, embedder: embedder, chat: chat, topK: topK}
}

// Query runs semantic retrieval for the question.
func (r *Retriever) Query(ctx context.Context, question string) (*Response, error) {
	timer := logging.StartTimer(logging.CategorySemantic, "semantic query")
	defer timer.Stop()

	queryEmbedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := r.store.Search(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	if len(chunks) == 0 {
		return &Response{
			AnswerText:  "No relevant documents found in the knowledge base. Check that documents have been ingested.",
			Citations:   []Citation{},
			ModelSource: r.embedder.Name(),
		}, nil
	}

	citations := make([]Citation, len(chunks))
	excerpts := make([]string, len(chunks))
	for i, c := range chunks {
		citations[i] = Citation{
			Label:     filepath.Base(c.Source),
			Heading:   c.Heading,
			Relevance: c.Similarity,
		}
		excerpts[i] = c.Content
	}

	answer, modelSource := r.composeAnswer(ctx, question, chunks, excerpts)
	logging.Semantic("question answered from %d chunks via %s", len(chunks), modelSource)

	return &Response{
		AnswerText:  answer,
		Citations:   citations,
		ContextUsed: len(chunks),
		ModelSource: modelSource,
	}, nil
}

// composeAnswer prefers LLM synthesis, falling back to an extractive
// answer built from the top-ranked chunks.
func (r *Retriever) composeAnswer(ctx context.Context, question string, chunks []ScoredChunk, excerpts []string) (string, string) {
	if r.chat != nil {
		answer, err := r.chat.Synthesize(ctx, question, excerpts)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, "llm"
		}
		if err != nil {
			logging.Get(logging.CategorySemantic).Warn("llm synthesis failed, falling back to extractive answer: %v", err)
		}
	}

	var b strings.Builder
	primary := chunks[0]
	if primary.Heading != "" {
		b.WriteString("## " + primary.Heading + "\n\n")
	}
	b.WriteString(strings.TrimSpace(primary.Content))
	if len(chunks) > 1 {
		b.WriteString("\n\n### Related\n")
		for _, c := range chunks[1:] {
			snippet := strings.TrimSpace(c.Content)
			if len(snippet) > 300 {
				snippet = snippet[:300] + "..."
			}
			b.WriteString(fmt.Sprintf("\n- %s: %s\n", filepath.Base(c.Source), snippet))
		}
	}
	return b.String(), "extractive"
}
