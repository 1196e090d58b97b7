//go:build sqlite_vec && cgo

package semantic

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// ChunkStore detects it at open time and ranks with
	// vec_distance_cosine in SQL instead of scanning embeddings in Go.
	vec.Auto()
}
