package dense

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/simdex/internal/db"
)

func TestEnsureIndex_Creates(t *testing.T) {
	var created *db.IndexDefinition
	ms := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			created = def
			return nil
		},
	}
	r := New(ms, Options{Dimensions: 4})

	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}
	want := "FT.CREATE simdex:vec:idx ON HASH PREFIX simdex:vec: SCHEMA document_id TAG vector VECTOR HNSW"
	if got := created.String(); got != want {
		t.Errorf("schema:\n got %s\nwant %s", got, want)
	}
	if f := created.Fields[1]; f.VectorDim != 4 || f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("unexpected vector field: %+v", f)
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	var algo db.VectorAlgorithm
	ms := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			algo = def.Fields[1].VectorAlgo
			return nil
		},
	}
	if err := New(ms, Options{Dimensions: 4, Algorithm: db.VectorFlat}).EnsureIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if algo != db.VectorFlat {
		t.Errorf("algo = %s", algo)
	}
}

func TestEnsureIndex_ExistingOrRaced(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		create error
	}{
		{"already exists", true, errors.New("must not be called")},
		{"created concurrently", false, db.ErrIndexExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockStore{
				indexExistsFn: func(context.Context, string) (bool, error) { return tt.exists, nil },
				hgetAllFn: func(context.Context, string) (map[string]string, error) {
					return map[string]string{"dimensions": "4", "algorithm": "HNSW"}, nil
				},
				createIndexFn: func(context.Context, *db.IndexDefinition) error { return tt.create },
				dropIndexFn:   func(context.Context, string) error { return errors.New("must not be called") },
			}
			if err := New(ms, Options{Dimensions: 4}).EnsureIndex(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnsureIndex_RecordsMeta(t *testing.T) {
	var metaKey string
	var meta map[string]string
	ms := &mockStore{
		hsetFn: func(_ context.Context, key string, fields map[string]string) error {
			metaKey, meta = key, fields
			return nil
		},
	}
	if err := New(ms, Options{Dimensions: 4, Algorithm: db.VectorFlat}).EnsureIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if metaKey != "simdex:vecmeta" {
		t.Errorf("meta key = %q", metaKey)
	}
	if meta["dimensions"] != "4" || meta["algorithm"] != "FLAT" {
		t.Errorf("meta = %v", meta)
	}
}

func TestEnsureIndex_RecreatesOnSettingsChange(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
	}{
		{"dimensions changed", map[string]string{"dimensions": "8", "algorithm": "HNSW"}},
		{"algorithm changed", map[string]string{"dimensions": "4", "algorithm": "FLAT"}},
		{"no meta", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dropped string
			var created *db.IndexDefinition
			ms := &mockStore{
				indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
				hgetAllFn:     func(context.Context, string) (map[string]string, error) { return tt.meta, nil },
				dropIndexFn: func(_ context.Context, name string) error {
					dropped = name
					return nil
				},
				createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
					created = def
					return nil
				},
			}
			if err := New(ms, Options{Dimensions: 4}).EnsureIndex(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dropped != "simdex:vec:idx" {
				t.Errorf("dropped = %q", dropped)
			}
			if created == nil || created.Fields[1].VectorDim != 4 {
				t.Errorf("index not recreated: %+v", created)
			}
		})
	}
}

func TestEnsureIndex_DropError(t *testing.T) {
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
		dropIndexFn:   func(context.Context, string) error { return errors.New("conn reset") },
	}
	if err := New(ms, Options{Dimensions: 4}).EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected drop error")
	}
}

func TestEnsureIndex_InvalidDimensions(t *testing.T) {
	if err := New(&mockStore{}, Options{}).EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestUpsert(t *testing.T) {
	var gotKey string
	var gotFields map[string]string
	ms := &mockStore{
		hsetFn: func(_ context.Context, key string, fields map[string]string) error {
			gotKey, gotFields = key, fields
			return nil
		},
	}
	r := New(ms, Options{Dimensions: 2})

	if err := r.Upsert(context.Background(), "r1", []float32{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "simdex:vec:r1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotFields["document_id"] != "r1" || len(gotFields["vector"]) != 8 {
		t.Errorf("fields = %q", gotFields)
	}

	if err := r.Upsert(context.Background(), "r1", []float32{1}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestDelete(t *testing.T) {
	var gotKey string
	ms := &mockStore{delFn: func(_ context.Context, key string) error { gotKey = key; return nil }}
	if err := New(ms, Options{Dimensions: 2}).Delete(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}
	if gotKey != "simdex:vec:r1" {
		t.Errorf("key = %q", gotKey)
	}
}

func TestQueryNearest(t *testing.T) {
	var gotQuery *db.KNNQuery
	ms := &mockStore{
		searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
			gotQuery = q
			return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
				{Key: "simdex:vec:a", Score: 0.9, Fields: map[string]string{"document_id": "a"}},
				{Key: "simdex:vec:b", Score: 0.4, Fields: map[string]string{}},
			}}, nil
		},
	}

	hits, err := New(ms, Options{Dimensions: 2}).QueryNearest(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.IndexName != "simdex:vec:idx" || gotQuery.K != 5 {
		t.Errorf("query = %+v", gotQuery)
	}
	if len(hits) != 2 || hits[0].DocumentID != "a" || hits[0].Score != 0.9 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[1].DocumentID != "b" {
		t.Errorf("expected id from key, got %q", hits[1].DocumentID)
	}
}

func TestQueryNearest_Error(t *testing.T) {
	boom := errors.New("boom")
	ms := &mockStore{
		searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) { return nil, boom },
	}
	if _, err := New(ms, Options{Dimensions: 2}).QueryNearest(context.Background(), []float32{1, 0}, 5); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
