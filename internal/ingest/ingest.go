package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"drdoc/internal/config"
	"drdoc/internal/fact"
	"drdoc/internal/logging"
	"drdoc/internal/semantic"
)

// FactSink receives extracted fact records. Satisfied by the symbolic
// knowledge base; nil disables fact extraction.
type FactSink interface {
	LoadRecords(records []fact.Record) error
}

// Report summarizes one ingestion run.
type Report struct {
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
	Facts  int `json:"facts"`
}

// Pipeline ingests markdown documents: each file is chunked and
// embedded into the vector store, and run through the fact extractor
// into the symbolic store.
type Pipeline struct {
	store     *semantic.ChunkStore
	embedder  semantic.EmbeddingEngine
	facts     FactSink
	extractor *fact.Extractor
	cfg       config.IngestConfig
}

// NewPipeline wires an ingestion pipeline. facts may be nil when the
// symbolic store is disabled.
func NewPipeline(store *semantic.ChunkStore, embedder semantic.EmbeddingEngine, facts FactSink, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		facts:     facts,
		extractor: fact.NewExtractor(),
		cfg:       cfg,
	}
}

// IngestDir walks the configured docs directory and ingests every
// markdown file found. Files that fail are logged and skipped; the
// walk continues so one bad file cannot block the rest.
func (p *Pipeline) IngestDir(ctx context.Context) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "ingest directory")
	defer timer.Stop()

	root := p.cfg.DocsDir
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("docs directory %s: %w", root, err)
	}

	report := &Report{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isMarkdown(path) {
			return nil
		}
		chunks, facts, ferr := p.IngestFile(ctx, path)
		if ferr != nil {
			logging.Get(logging.CategoryIngest).Error("failed to ingest %s: %v", path, ferr)
			return nil
		}
		report.Files++
		report.Chunks += chunks
		report.Facts += facts
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Ingest("ingested %d files: %d chunks, %d facts", report.Files, report.Chunks, report.Facts)
	return report, nil
}

// IngestFile ingests one markdown file, replacing any chunks
// previously stored for it.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (chunks, facts int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)
	source := p.sourceLabel(path)

	parts := SplitMarkdown(content, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(parts) > 0 {
		texts := make([]string, len(parts))
		for i, c := range parts {
			texts[i] = c.Content
		}
		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, 0, fmt.Errorf("embed %s: %w", source, err)
		}
		if len(embeddings) != len(parts) {
			return 0, 0, fmt.Errorf("embed %s: got %d embeddings for %d chunks", source, len(embeddings), len(parts))
		}

		if err := p.store.DeleteSource(ctx, source); err != nil {
			return 0, 0, fmt.Errorf("clear old chunks for %s: %w", source, err)
		}
		for i, c := range parts {
			err := p.store.Add(ctx, semantic.Chunk{
				Content:   c.Content,
				Source:    source,
				Heading:   c.Heading,
				Embedding: embeddings[i],
			})
			if err != nil {
				return 0, 0, fmt.Errorf("store chunk %d of %s: %w", i, source, err)
			}
		}
	}

	var records []fact.Record
	if p.facts != nil {
		records = p.extractor.Extract(content, source)
		if len(records) > 0 {
			if err := p.facts.LoadRecords(records); err != nil {
				return 0, 0, fmt.Errorf("load facts from %s: %w", source, err)
			}
		}
	}

	logging.Ingest("ingested %s: %d chunks, %d facts", source, len(parts), len(records))
	return len(parts), len(records), nil
}

// RemoveFile drops the chunks stored for a deleted document. Extracted
// facts stay: the fact store is additive and rebuilt on full re-ingest.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	return p.store.DeleteSource(ctx, p.sourceLabel(path))
}

// sourceLabel normalizes a path to a stable source identifier relative
// to the docs directory.
func (p *Pipeline) sourceLabel(path string) string {
	if rel, err := filepath.Rel(p.cfg.DocsDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
