package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return def
}

func TestIndexBuilder_DenseSchema(t *testing.T) {
	idx := mustBuild(t, NewIndex("simdex:vec:idx").
		Prefix("simdex:vec:").
		Tag("document_id").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200))

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Name != "document_id" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want document_id TAG", idx.Fields[0])
	}
	f := idx.Fields[1]
	if f.VectorAlgo != VectorHNSW || f.VectorDim != 1536 || f.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", f)
	}
	if f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("HNSW params M=%d EF=%d", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx := mustBuild(t, NewIndex("flat-idx").
		Prefix("simdex:vec:").
		Tag("document_id").
		VectorFlat("vector", 384, DistanceCosine, 1024))

	f := idx.Fields[1]
	if f.VectorAlgo != VectorFlat || f.VectorBlockSize != 1024 {
		t.Errorf("vector field = %+v", f)
	}
}

func TestIndexBuilder_MultiplePrefixes(t *testing.T) {
	idx := mustBuild(t, NewIndex("multi-idx").
		Prefix("a:", "b:").
		Prefix("c:").
		Tag("x"))

	if len(idx.Prefixes) != 3 {
		t.Errorf("prefix count = %d, want 3", len(idx.Prefixes))
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("x"), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"vector without dim", NewIndex("idx").VectorFlat("v", 0, DistanceCosine, 0), "positive DIM"},
		{"invalid characters", NewIndex("idx with spaces").Tag("x"), "invalid characters"},
		{"duplicate field", NewIndex("idx").Tag("x").Tag("x"), "duplicate field name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := mustBuild(t, NewIndex("simdex:vec:idx").
		Prefix("simdex:vec:").
		Tag("document_id").
		VectorFlat("vector", 512, DistanceCosine, 0))

	want := "FT.CREATE simdex:vec:idx ON HASH PREFIX simdex:vec: SCHEMA document_id TAG vector VECTOR FLAT"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for s, want := range map[string]bool{
		"simdex:vec:idx": true,
		"a_b-c":          true,
		"":               false,
		"with space":     false,
		"dot.ted":        false,
	} {
		if got := IsValidIdentifier(s); got != want {
			t.Errorf("IsValidIdentifier(%q) = %v, want %v", s, got, want)
		}
	}
}
