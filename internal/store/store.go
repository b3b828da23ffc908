// Package store is the document-database port used by the repositories.
// Collections are slash-separated paths ("projects", "projects/{id}/transformations")
// and documents are flat field maps.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")

	// ErrIndexUnavailable reports that an ordered query could not run because
	// the backing composite index is missing or still building.
	ErrIndexUnavailable = errors.New("query index unavailable")
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type serverTimestamp struct{}

// ServerTimestamp is a field value the backing store replaces with its own
// clock at write time.
var ServerTimestamp = serverTimestamp{}

// Filter is an equality match on one field.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

type Document struct {
	ID   string
	Data map[string]any
}

type DocumentStore interface {
	// Add inserts a document under a generated id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set writes a document under a caller-chosen id. With merge, only the
	// given fields are written; nested maps are merged key by key.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Update patches fields of an existing document. Fails with ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, q Query) ([]Document, error)
	Close() error
}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
