package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/simdex/internal/domain/text"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxFieldSize is the maximum size of a single field in bytes.
const MaxFieldSize = 65536 // 64KB

// FieldName identifies one of the free-text résumé fields compared for similarity.
type FieldName string

const (
	// GrowthBackground is the upbringing / personal background essay.
	GrowthBackground FieldName = "growth_background"
	// Motivation is the application motivation essay.
	Motivation FieldName = "motivation"
	// CareerHistory is the free-text work history.
	CareerHistory FieldName = "career_history"
)

// Fields lists the compared fields in canonical order.
var Fields = []FieldName{GrowthBackground, Motivation, CareerHistory}

// Valid reports whether f is one of the compared fields.
func (f FieldName) Valid() bool {
	switch f {
	case GrowthBackground, Motivation, CareerHistory:
		return true
	}
	return false
}

// Document is a résumé record (immutable value object).
// Only the three FieldName fields take part in comparison; name and position
// are carried for display.
type Document struct {
	id        string
	name      string
	position  string
	fields    map[FieldName]string
	createdAt time.Time
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars. Unknown field names are rejected.
func New(id, name, position string, fields map[FieldName]string, createdAt time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with . _ : -")
	}
	for f, v := range fields {
		if !f.Valid() {
			return Document{}, fmt.Errorf("unknown field %q", f)
		}
		if len(v) > MaxFieldSize {
			return Document{}, fmt.Errorf("field %s too large (max %d bytes)", f, MaxFieldSize)
		}
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return Document{
		id:        id,
		name:      name,
		position:  position,
		fields:    cloneFields(fields),
		createdAt: createdAt,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, name, position string, fields map[FieldName]string, createdAt time.Time) Document {
	return Document{id: id, name: name, position: position, fields: fields, createdAt: createdAt}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Name returns the applicant name.
func (d *Document) Name() string { return d.name }

// Position returns the applied position.
func (d *Document) Position() string { return d.position }

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// Field returns the raw text of one field ("" when absent).
func (d *Document) Field(f FieldName) string { return d.fields[f] }

// Fields returns a copy of all field texts.
func (d *Document) Fields() map[FieldName]string { return cloneFields(d.fields) }

// IsCandidate reports whether at least one field carries meaningful text.
// Documents failing this never take part in similarity.
func (d *Document) IsCandidate() bool {
	for _, f := range Fields {
		if !text.IsMeaningless(d.fields[f]) {
			return true
		}
	}
	return false
}

// CombinedText joins the meaningful fields in canonical order, one per line.
func (d *Document) CombinedText() string {
	parts := make([]string, 0, len(Fields))
	for _, f := range Fields {
		if v := d.fields[f]; !text.IsMeaningless(v) {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

func cloneFields(m map[FieldName]string) map[FieldName]string {
	if m == nil {
		return nil
	}
	c := make(map[FieldName]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
