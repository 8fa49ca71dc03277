package chunking

import (
	"github.com/kailas-cloud/simdex/internal/domain/chunk"
	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/text"
)

// Engine splits document fields into fixed-size rune windows.
type Engine struct {
	size     int
	overlap  int
	minChars int
}

// New creates a chunking engine. A non-positive size falls back to 500 runes;
// an overlap that would stall the window is ignored.
func New(size, overlap, minChars int) *Engine {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if minChars < 0 {
		minChars = 0
	}
	return &Engine{size: size, overlap: overlap, minChars: minChars}
}

// Step returns how far each window advances.
func (e *Engine) Step() int {
	step := e.size - e.overlap
	if step <= 0 {
		return e.size
	}
	return step
}

// Chunk splits every compared field of doc, in canonical field order.
func (e *Engine) Chunk(doc *document.Document) []chunk.Chunk {
	var out []chunk.Chunk
	for _, f := range document.Fields {
		out = append(out, e.ChunkField(doc.ID(), f, doc.Field(f))...)
	}
	return out
}

// ChunkField splits one field. Windows with fewer than minChars non-space
// runes after normalization are skipped; indices stay dense over kept chunks.
func (e *Engine) ChunkField(docID string, field document.FieldName, s string) []chunk.Chunk {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	step := e.Step()
	out := make([]chunk.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+e.size, len(runes))
		window := string(runes[start:end])
		if text.NonSpaceLen(text.Normalize(window)) >= e.minChars && text.NonSpaceLen(window) > 0 {
			out = append(out, chunk.Chunk{
				DocumentID: docID,
				Field:      field,
				Index:      len(out),
				Text:       window,
				Start:      start,
				End:        end,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// Coverage merges the spans of chunks from one field into disjoint, ordered
// segments of the original text, so overlapping windows are counted once.
func Coverage(field string, chunks []chunk.Chunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	runes := []rune(field)

	var out []string
	segStart, segEnd := chunks[0].Start, chunks[0].End
	for _, c := range chunks[1:] {
		if c.Start <= segEnd {
			segEnd = max(segEnd, c.End)
			continue
		}
		out = append(out, string(runes[segStart:segEnd]))
		segStart, segEnd = c.Start, c.End
	}
	return append(out, string(runes[segStart:segEnd]))
}
