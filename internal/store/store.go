package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a transaction could not commit after the
	// store's internal retries.
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// serverTimestamp is an opaque marker resolved by the store at commit time,
// so ordering does not depend on client clocks.
type serverTimestamp struct{}

// ServerTimestamp can be used as a field value in any write; the store
// replaces it with its own clock when the transaction commits.
var ServerTimestamp = serverTimestamp{}

// Document is a snapshot of a stored record.
type Document struct {
	Path    string
	Exists  bool
	Data    map[string]any
	Version int64
}

// Txn operates against a snapshot; writes are buffered and committed
// atomically when the transaction function returns nil.
type Txn interface {
	// Get reads a document inside the transaction. A missing document is
	// returned with Exists=false, not an error.
	Get(path string) (Document, error)
	// Set replaces the document at path.
	Set(path string, data map[string]any)
	// Merge upserts the given fields, creating the document if absent.
	Merge(path string, fields map[string]any)
	// Update patches fields of an existing document; commit fails with
	// ErrNotFound if the document is absent.
	Update(path string, fields map[string]any)
}

// Store is the transactional document store the ledger runs on. Paths follow
// the users/{id}, users/{id}/transactions/{autoId} layout.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// FindOne returns the first top-level document of collection whose field
	// equals value, or ErrNotFound.
	FindOne(ctx context.Context, collection, field, value string) (Document, error)
	// List returns up to limit documents of a (sub)collection, newest first.
	// A limit <= 0 returns all documents.
	List(ctx context.Context, collection string, limit int) ([]Document, error)
	// RunTransaction executes fn against a snapshot and commits its writes
	// atomically. Conflicting concurrent transactions are retried a bounded
	// number of times before failing with ErrConflict. An error returned by
	// fn aborts the transaction with no writes applied.
	RunTransaction(ctx context.Context, fn func(tx Txn) error) error
	// NewID returns a fresh auto-id for subcollection documents.
	NewID() string
}

// RandomID returns a 16-hex-char identifier.
func RandomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
