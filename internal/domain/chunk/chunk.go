package chunk

import "github.com/kailas-cloud/simdex/internal/domain/document"

// Chunk is a contiguous span of one field's text.
// Offsets are rune offsets into the original field text; End > Start.
type Chunk struct {
	DocumentID string
	Field      document.FieldName
	Index      int
	Text       string
	Start      int
	End        int
}

// Len returns the span length in runes.
func (c Chunk) Len() int { return c.End - c.Start }
