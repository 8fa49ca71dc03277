package db

import (
	"encoding/binary"
	"math"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search. For KNN queries Score
// is cosine similarity clamped to [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector encodes a vector as little-endian FLOAT32, the layout expected
// by HASH vector fields and KNN query blobs.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
