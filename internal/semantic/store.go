package semantic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"drdoc/internal/logging"
)

// Chunk is a stored document fragment with its embedding.
type Chunk struct {
	ID        int64
	Content   string
	Source    string
	Heading   string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredChunk is a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk
	Similarity float64
}

// ChunkStore persists document chunks and their embeddings in SQLite.
type ChunkStore struct {
	db *sql.DB

	// hasVec records whether the sqlite-vec extension is registered
	// with the driver, detected once at open time.
	hasVec bool
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	heading TEXT,
	embedding TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// OpenChunkStore opens (creating if needed) the chunk database at path.
func OpenChunkStore(path string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	store := &ChunkStore{db: db}
	store.detectVecExtension()
	return store, nil
}

// detectVecExtension checks whether sqlite-vec is registered by
// evaluating its distance function on trivial vectors.
func (s *ChunkStore) detectVecExtension() {
	var distance float64
	err := s.db.QueryRow("SELECT vec_distance_cosine(?, ?)", "[1.0]", "[1.0]").Scan(&distance)
	s.hasVec = err == nil
	if s.hasVec {
		logging.Get(logging.CategoryStore).Info("sqlite-vec extension detected; using SQL distance ranking")
	}
}

// Close closes the underlying database.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// Add stores a chunk with its embedding.
func (s *ChunkStore) Add(ctx context.Context, chunk Chunk) error {
	embeddingJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO chunks (content, source, heading, embedding) VALUES (?, ?, ?, ?)",
		chunk.Content, chunk.Source, chunk.Heading, string(embeddingJSON),
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// DeleteSource removes all chunks from a source document, used before
// re-ingesting a changed file.
func (s *ChunkStore) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	if err != nil {
		return fmt.Errorf("delete chunks for %s: %w", source, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Search ranks all embedded chunks by cosine similarity to the query
// vector and returns the top limit results, highest similarity first.
// When sqlite-vec is registered the ranking happens in SQL; otherwise
// every embedding is scored in Go.
func (s *ChunkStore) Search(ctx context.Context, query []float32, limit int) ([]ScoredChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "chunk search")
	defer timer.Stop()

	if limit <= 0 {
		limit = 5
	}

	if s.hasVec {
		results, err := s.searchVec(ctx, query, limit)
		if err == nil {
			return results, nil
		}
		// Mixed-dimension embeddings make vec_distance_cosine error out;
		// the scan path handles them per row.
		logging.Get(logging.CategoryStore).Warn("sqlite-vec search failed, scanning instead: %v", err)
	}
	return s.searchScan(ctx, query, limit)
}

// searchVec ranks chunks with sqlite-vec's distance function. Stored
// embeddings are JSON arrays, which sqlite-vec accepts directly.
func (s *ChunkStore) searchVec(ctx context.Context, query []float32, limit int) ([]ScoredChunk, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, heading, embedding, created_at,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?`,
		string(queryJSON), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var chunk Chunk
		var embeddingJSON string
		var heading sql.NullString
		var distance float64
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.Source, &heading, &embeddingJSON, &chunk.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Heading = heading.String
		if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		// Cosine distance is 1 - similarity.
		results = append(results, ScoredChunk{Chunk: chunk, Similarity: 1.0 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return results, nil
}

// searchScan scores every embedded chunk in Go. Rows with malformed or
// mismatched embeddings are skipped.
func (s *ChunkStore) searchScan(ctx context.Context, query []float32, limit int) ([]ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, source, heading, embedding, created_at FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var candidates []ScoredChunk
	for rows.Next() {
		var chunk Chunk
		var embeddingJSON string
		var heading sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.Source, &heading, &embeddingJSON, &chunk.CreatedAt); err != nil {
			continue
		}
		chunk.Heading = heading.String

		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			continue
		}
		chunk.Embedding = embedding

		similarity, err := CosineSimilarity(query, embedding)
		if err != nil {
			continue
		}
		candidates = append(candidates, ScoredChunk{Chunk: chunk, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
