// Package storage holds the persistence layer: the vector/document store
// collaborator interface and its SQLite and in-memory implementations.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrEmptyFilter is returned by Delete when no condition is given.
	// Collection-wide deletes are never allowed.
	ErrEmptyFilter = errors.New("delete requires a non-empty filter")

	// ErrCollectionNotFound is returned when an operation names a collection
	// that was never created.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidFilter wraps every malformed-condition error.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Record is one stored point: a caller-controlled stable id, an optional
// embedding vector and a JSON-compatible payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredRecord is a search hit. Score is the raw cosine similarity in [-1, 1].
type ScoredRecord struct {
	Record
	Score float64
}

// CollectionInfo describes a collection as it exists in the store.
type CollectionInfo struct {
	Name       string
	VectorSize int
	Distance   string
	// Created is true when EnsureCollection created the collection.
	Created bool
}

// ScrollRequest asks for one page of records matching Filter, starting after
// the continuation cursor Offset ("" for the first page).
type ScrollRequest struct {
	Filter Filter
	Limit  int
	Offset string
}

// ScrollPage is one page of a scroll. Next is "" when no more records match.
type ScrollPage struct {
	Records []Record
	Next    string
}

// DistanceCosine is the only distance metric the stores implement.
const DistanceCosine = "cosine"

// VectorStore is the store collaborator consumed by the retrieval layer.
type VectorStore interface {
	// EnsureCollection creates the collection if absent and returns its
	// stored description. An existing collection is never altered, even when
	// vectorSize differs.
	EnsureCollection(ctx context.Context, name string, vectorSize int) (CollectionInfo, error)

	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Scroll returns one page of records matching the request filter in
	// insertion order.
	Scroll(ctx context.Context, collection string, req ScrollRequest) (ScrollPage, error)

	// Search returns up to limit records nearest to vector among those
	// matching filter. Records without a vector are skipped.
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]ScoredRecord, error)

	// Delete removes the records matching filter and returns how many were
	// removed. An empty filter yields ErrEmptyFilter.
	Delete(ctx context.Context, collection string, filter Filter) (int, error)

	// Count returns how many records match filter.
	Count(ctx context.Context, collection string, filter Filter) (int, error)

	Close() error
}
