package document

import (
	"time"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
)

// jsonDoc is the stored JSON shape of a résumé record.
type jsonDoc struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Position  string            `json:"position,omitempty"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

func toJSONDoc(doc *domdoc.Document) jsonDoc {
	fields := make(map[string]string, len(domdoc.Fields))
	for f, v := range doc.Fields() {
		fields[string(f)] = v
	}
	return jsonDoc{
		ID:        doc.ID(),
		Name:      doc.Name(),
		Position:  doc.Position(),
		Fields:    fields,
		CreatedAt: doc.CreatedAt().UTC(),
	}
}

// toDomain hydrates a stored record. Fields outside the compared set are dropped.
func (j jsonDoc) toDomain() domdoc.Document {
	fields := make(map[domdoc.FieldName]string, len(j.Fields))
	for k, v := range j.Fields {
		if f := domdoc.FieldName(k); f.Valid() {
			fields[f] = v
		}
	}
	return domdoc.Reconstruct(j.ID, j.Name, j.Position, fields, j.CreatedAt)
}
