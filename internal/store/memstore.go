package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

const memMaxAttempts = 20

// MemStore is an in-process Store with optimistic concurrency: transaction
// reads are version-stamped and the commit is rejected and retried when any
// document read has changed underneath it. It is the single-process test
// double for the hosted document database.
type MemStore struct {
	mu     sync.Mutex
	docs   map[string]*memDoc
	seq    int64
	lastTS time.Time
	clock  func() time.Time
}

type memDoc struct {
	data    map[string]any
	version int64
	seq     int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:  make(map[string]*memDoc),
		clock: time.Now,
	}
}

// SetClock overrides the commit clock, for tests.
func (m *MemStore) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// stamp returns a commit timestamp that is strictly monotonic per store.
// Callers must hold mu.
func (m *MemStore) stamp() time.Time {
	now := m.clock()
	if !now.After(m.lastTS) {
		now = m.lastTS.Add(time.Nanosecond)
	}
	m.lastTS = now
	return now
}

func (m *MemStore) Get(ctx context.Context, path string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(path), nil
}

func (m *MemStore) snapshot(path string) Document {
	d, ok := m.docs[path]
	if !ok {
		return Document{Path: path}
	}
	return Document{Path: path, Exists: true, Data: copyMap(d.data), Version: d.version}
}

func (m *MemStore) FindOne(ctx context.Context, collection, field, value string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := collection + "/"
	for path, d := range m.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if s, ok := d.data[field].(string); ok && s == value {
			return m.snapshot(path), nil
		}
	}
	return Document{}, ErrNotFound
}

func (m *MemStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := collection + "/"
	type entry struct {
		doc Document
		seq int64
	}
	var entries []entry
	for path, d := range m.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		entries = append(entries, entry{m.snapshot(path), d.seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs, nil
}

func (m *MemStore) NewID() string {
	return RandomID()
}

type memWriteOp int

const (
	opSet memWriteOp = iota
	opMerge
	opUpdate
)

type memWrite struct {
	op     memWriteOp
	path   string
	fields map[string]any
}

type memTxn struct {
	store  *MemStore
	reads  map[string]int64
	writes []memWrite
}

func (t *memTxn) Get(path string) (Document, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	doc := t.store.snapshot(path)
	t.reads[path] = doc.Version
	return doc, nil
}

func (t *memTxn) Set(path string, data map[string]any) {
	t.writes = append(t.writes, memWrite{opSet, path, copyMap(data)})
}

func (t *memTxn) Merge(path string, fields map[string]any) {
	t.writes = append(t.writes, memWrite{opMerge, path, copyMap(fields)})
}

func (t *memTxn) Update(path string, fields map[string]any) {
	t.writes = append(t.writes, memWrite{opUpdate, path, copyMap(fields)})
}

func (m *MemStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; attempt < memMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		txn := &memTxn{store: m, reads: make(map[string]int64)}
		if err := fn(txn); err != nil {
			return err
		}
		ok, err := m.commit(txn)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrConflict
}

// commit validates the transaction's read set and applies its writes.
// Returns false when a read document changed and the body must be re-run.
func (m *MemStore) commit(t *memTxn) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, version := range t.reads {
		var current int64
		if d, ok := m.docs[path]; ok {
			current = d.version
		}
		if current != version {
			return false, nil
		}
	}

	// Update against a missing document fails the whole transaction.
	for _, w := range t.writes {
		if w.op == opUpdate {
			if _, ok := m.docs[w.path]; !ok {
				return false, ErrNotFound
			}
		}
	}

	now := m.stamp()
	for _, w := range t.writes {
		fields := resolveTimestamps(w.fields, now)
		d, ok := m.docs[w.path]
		switch {
		case w.op == opSet || !ok:
			m.seq++
			m.docs[w.path] = &memDoc{data: fields, version: versionAfter(d), seq: m.seq}
		default:
			for k, v := range fields {
				d.data[k] = v
			}
			d.version++
		}
	}
	return true, nil
}

func versionAfter(d *memDoc) int64 {
	if d == nil {
		return 1
	}
	return d.version + 1
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			dst[k] = copyMap(nested)
			continue
		}
		dst[k] = v
	}
	return dst
}

func resolveTimestamps(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = now
		case map[string]any:
			out[k] = resolveTimestamps(val, now)
		default:
			out[k] = v
		}
	}
	return out
}
