// Package document persists résumé records as JSON documents in Valkey/Redis.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/simdex/internal/db"
	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
)

// store is the consumer interface for documents (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores documents under simdex:doc:<id>.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert creates or replaces a document. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	key := docKey(doc.ID())
	data, err := json.Marshal(toJSONDoc(doc))
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return false, fmt.Errorf("json.set %s: %w", key, err)
	}
	return !exists, nil
}

// LoadDocument returns a document by ID.
func (r *Repo) LoadDocument(ctx context.Context, id string) (domdoc.Document, error) {
	key := docKey(id)
	raw, err := r.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	return decode(id, raw)
}

// LoadCorpus returns every stored document ordered by ID.
// Keys removed between SCAN and JSON.GET are skipped.
func (r *Repo) LoadCorpus(ctx context.Context) ([]domdoc.Document, error) {
	keys, err := r.store.Scan(ctx, domain.KeyPrefix+docNamespace+"*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	slices.Sort(keys)

	raws, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	docs := make([]domdoc.Document, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		doc, err := decode(extractDocID(keys[i]), raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := docKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

const docNamespace = "doc:"

func docKey(id string) string {
	return domain.KeyPrefix + docNamespace + id
}

func extractDocID(key string) string {
	return strings.TrimPrefix(key, domain.KeyPrefix+docNamespace)
}

// decode accepts both the root object and the "$" array form of JSON.GET.
// Records written without an id take it from the key.
func decode(id string, raw []byte) (domdoc.Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr []jsonDoc
		if err := json.Unmarshal(raw, &arr); err != nil {
			return domdoc.Document{}, fmt.Errorf("unmarshal document: %w", err)
		}
		if len(arr) == 0 {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return withID(arr[0], id).toDomain(), nil
	}
	var j jsonDoc
	if err := json.Unmarshal(raw, &j); err != nil {
		return domdoc.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return withID(j, id).toDomain(), nil
}

func withID(j jsonDoc, id string) jsonDoc {
	if j.ID == "" {
		j.ID = id
	}
	return j
}
