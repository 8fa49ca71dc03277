package domain

import "time"

// ChangeOp names a document mutation.
type ChangeOp string

const (
	// ChangeUpsert is a create or replace.
	ChangeUpsert ChangeOp = "upsert"
	// ChangeDelete is a removal.
	ChangeDelete ChangeOp = "delete"
	// ChangeRebuild asks every replica to rebuild its lexical index.
	ChangeRebuild ChangeOp = "rebuild"
)

// DocumentChange announces a corpus mutation to other replicas.
type DocumentChange struct {
	DocumentID string    `json:"document_id,omitempty"`
	Op         ChangeOp  `json:"op"`
	At         time.Time `json:"at"`
}
