// Package ledger wraps the off-chain document store holding split-wallet,
// shared-wallet and user-wallet records. On-chain state is authoritative;
// everything in here is the app's view of it.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names in the document store.
const (
	CollectionSplitWallets  = "splitWallets"
	CollectionSharedWallets = "sharedWallets"
	CollectionUserWallets   = "userWallets"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("ledger: document not found")
	// ErrConflict is returned by Update when the expected revision does not
	// match the stored one.
	ErrConflict = errors.New("ledger: revision conflict")
)

// Document is one stored record with its revision counter.
type Document struct {
	ID   string          `json:"id"`
	Rev  int64           `json:"rev"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document payload into v.
func (d *Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Filter is a single equality predicate for Query.
type Filter struct {
	Field string
	Value string
}

// Store is the document-store contract the repositories consume. Update is
// atomic and conditional: it only applies when expectedRev matches the
// current revision, otherwise it fails with ErrConflict.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection, id string, data any) (*Document, error)
	Update(ctx context.Context, collection, id string, expectedRev int64, data any) (*Document, error)
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error)
}
