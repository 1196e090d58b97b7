package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"drdoc/internal/config"
	"drdoc/internal/fact"
	"drdoc/internal/semantic"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (stubEmbedder) Name() string { return "stub" }

type recordingSink struct {
	records []fact.Record
}

func (s *recordingSink) LoadRecords(records []fact.Record) error {
	s.records = append(s.records, records...)
	return nil
}

const paymentsDoc = `# Payments API

POST /v1/payments creates a payment.

| Code | Meaning |
|------|---------|
| 400 | Invalid request payload |
| 429 | Rate limit exceeded |

Free tier: 60 requests per minute.
`

func newTestPipeline(t *testing.T, docsDir string) (*Pipeline, *semantic.ChunkStore, *recordingSink) {
	t.Helper()
	store, err := semantic.OpenChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("OpenChunkStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sink := &recordingSink{}
	cfg := config.IngestConfig{DocsDir: docsDir, ChunkSize: 1500, ChunkOverlap: 200}
	return NewPipeline(store, stubEmbedder{}, sink, cfg), store, sink
}

func chunksBySource(t *testing.T, ctx context.Context, store *semantic.ChunkStore) map[string]int {
	t.Helper()
	results, err := store.Search(ctx, []float32{1, 1, 0}, 100)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Source]++
	}
	return counts
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestDir(t *testing.T) {
	docsDir := t.TempDir()
	writeDoc(t, docsDir, "payments.md", paymentsDoc)
	writeDoc(t, docsDir, "notes.txt", "not markdown, skipped")
	pipeline, store, sink := newTestPipeline(t, docsDir)

	report, err := pipeline.IngestDir(context.Background())
	if err != nil {
		t.Fatalf("IngestDir() error = %v", err)
	}
	if report.Files != 1 {
		t.Errorf("Files = %d, want 1", report.Files)
	}
	if report.Chunks == 0 {
		t.Error("expected at least one chunk")
	}
	if report.Facts == 0 {
		t.Error("expected extracted facts")
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != report.Chunks {
		t.Errorf("store has %d chunks, report says %d", n, report.Chunks)
	}

	var sawEndpoint, sawError bool
	for _, rec := range sink.records {
		switch rec.Category {
		case fact.CategoryEndpoint:
			sawEndpoint = true
		case fact.CategoryError:
			sawError = true
		}
		if rec.SourceFile != "payments.md" {
			t.Errorf("SourceFile = %q, want payments.md", rec.SourceFile)
		}
	}
	if !sawEndpoint || !sawError {
		t.Errorf("expected endpoint and error facts, got %+v", sink.records)
	}
}

func TestIngestFileReplacesExistingChunks(t *testing.T) {
	docsDir := t.TempDir()
	path := writeDoc(t, docsDir, "payments.md", paymentsDoc)
	pipeline, store, _ := newTestPipeline(t, docsDir)
	ctx := context.Background()

	if _, _, err := pipeline.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	first, _ := store.Count(ctx)

	// Re-ingest the same file: chunk count must not grow.
	if _, _, err := pipeline.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile() second error = %v", err)
	}
	second, _ := store.Count(ctx)
	if second != first {
		t.Errorf("re-ingest grew chunk count from %d to %d", first, second)
	}
}

func TestIngestDirMissing(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, filepath.Join(t.TempDir(), "missing"))
	if _, err := pipeline.IngestDir(context.Background()); err == nil {
		t.Fatal("expected error for missing docs directory")
	}
}

func TestRemoveFile(t *testing.T) {
	docsDir := t.TempDir()
	path := writeDoc(t, docsDir, "payments.md", paymentsDoc)
	pipeline, store, _ := newTestPipeline(t, docsDir)
	ctx := context.Background()

	if _, _, err := pipeline.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if err := pipeline.RemoveFile(ctx, path); err != nil {
		t.Fatalf("RemoveFile() error = %v", err)
	}
	n, _ := store.Count(ctx)
	if n != 0 {
		t.Errorf("store has %d chunks after removal, want 0", n)
	}
}

func TestWatcherReingestsOnWrite(t *testing.T) {
	docsDir := t.TempDir()
	pipeline, store, _ := newTestPipeline(t, docsDir)

	w, err := NewWatcher(pipeline)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	writeDoc(t, docsDir, "new.md", paymentsDoc)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.Count(ctx); n > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watcher did not ingest the new document in time")
}

func TestWatcherIngestsNestedDirectories(t *testing.T) {
	docsDir := t.TempDir()
	existing := filepath.Join(docsDir, "guides")
	if err := os.MkdirAll(existing, 0755); err != nil {
		t.Fatal(err)
	}
	pipeline, store, _ := newTestPipeline(t, docsDir)

	w, err := NewWatcher(pipeline)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	// A document in a subdirectory that existed before Start.
	writeDoc(t, existing, "auth.md", paymentsDoc)

	// A document in a subdirectory created while watching.
	created := filepath.Join(docsDir, "reference")
	if err := os.MkdirAll(created, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	writeDoc(t, created, "errors.md", paymentsDoc)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		chunks := chunksBySource(t, ctx, store)
		if chunks["guides/auth.md"] > 0 && chunks["reference/errors.md"] > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("watcher did not ingest nested documents in time: %v", chunksBySource(t, ctx, store))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	docsDir := t.TempDir()
	pipeline, _, _ := newTestPipeline(t, docsDir)

	w, err := NewWatcher(pipeline)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestSourceLabelRelative(t *testing.T) {
	docsDir := t.TempDir()
	sub := filepath.Join(docsDir, "guides")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	path := writeDoc(t, sub, "auth.md", "# Auth\n\nUse OAuth 2.0 authorization code flow with PKCE.")
	pipeline, _, sink := newTestPipeline(t, docsDir)

	if _, _, err := pipeline.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	for _, rec := range sink.records {
		if !strings.HasPrefix(rec.SourceFile, "guides/") {
			t.Errorf("SourceFile = %q, want guides/ prefix", rec.SourceFile)
		}
	}
}
