package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgMaxAttempts = 3

// PgStore keeps documents as jsonb rows in a single table and implements
// RunTransaction with row locks inside a pgx transaction. Serialization
// failures are retried a bounded number of times.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Get(ctx context.Context, path string) (Document, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.db.QueryRow(ctx,
		`SELECT data, version FROM documents WHERE path = $1`, path,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{Path: path}, nil
	}
	if err != nil {
		return Document{}, err
	}
	return decodeDoc(path, raw, version)
}

func (s *PgStore) FindOne(ctx context.Context, collection, field, value string) (Document, error) {
	var (
		path    string
		raw     []byte
		version int64
	)
	err := s.db.QueryRow(ctx,
		`SELECT path, data, version FROM documents
		 WHERE path LIKE $1 AND path NOT LIKE $2 AND data->>$3 = $4
		 LIMIT 1`,
		collection+"/%", collection+"/%/%", field, value,
	).Scan(&path, &raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return decodeDoc(path, raw, version)
}

func (s *PgStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT path, data, version FROM documents
		 WHERE path LIKE $1 AND path NOT LIKE $2
		 ORDER BY updated_at DESC, path DESC
		 LIMIT NULLIF($3, 0)`,
		collection+"/%", collection+"/%/%", max(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			path    string
			raw     []byte
			version int64
		)
		if err := rows.Scan(&path, &raw, &version); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(path, raw, version)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PgStore) NewID() string {
	return RandomID()
}

type pgTxn struct {
	ctx    context.Context
	tx     pgx.Tx
	writes []memWrite
}

func (t *pgTxn) Get(path string) (Document, error) {
	var (
		raw     []byte
		version int64
	)
	err := t.tx.QueryRow(t.ctx,
		`SELECT data, version FROM documents WHERE path = $1 FOR UPDATE`, path,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{Path: path}, nil
	}
	if err != nil {
		return Document{}, err
	}
	return decodeDoc(path, raw, version)
}

func (t *pgTxn) Set(path string, data map[string]any) {
	t.writes = append(t.writes, memWrite{opSet, path, copyMap(data)})
}

func (t *pgTxn) Merge(path string, fields map[string]any) {
	t.writes = append(t.writes, memWrite{opMerge, path, copyMap(fields)})
}

func (t *pgTxn) Update(path string, fields map[string]any) {
	t.writes = append(t.writes, memWrite{opUpdate, path, copyMap(fields)})
}

func (s *PgStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < pgMaxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryablePgErr(err) {
			return err
		}
		lastErr = err
	}
	return errors.Join(ErrConflict, lastErr)
}

func (s *PgStore) runOnce(ctx context.Context, fn func(tx Txn) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn := &pgTxn{ctx: ctx, tx: tx}
	if err := fn(txn); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, w := range txn.writes {
		fields := resolveTimestamps(w.fields, now)
		if err := applyPgWrite(ctx, tx, w.op, w.path, fields); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func applyPgWrite(ctx context.Context, tx pgx.Tx, op memWriteOp, path string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	switch op {
	case opSet:
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (path, data, version, updated_at)
			 VALUES ($1, $2, 1, now())
			 ON CONFLICT (path) DO UPDATE
			 SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
			path, raw,
		)
		return err
	case opMerge:
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (path, data, version, updated_at)
			 VALUES ($1, $2, 1, now())
			 ON CONFLICT (path) DO UPDATE
			 SET data = documents.data || EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
			path, raw,
		)
		return err
	default: // opUpdate
		tag, err := tx.Exec(ctx,
			`UPDATE documents
			 SET data = data || $2, version = version + 1, updated_at = now()
			 WHERE path = $1`,
			path, raw,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	}
}

// retryablePgErr reports whether the transaction hit a serialization or
// deadlock failure and should be re-run.
func retryablePgErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// decodeDoc unmarshals a jsonb row. Numbers come back as json.Number so
// integer coin amounts survive the round trip.
func decodeDoc(path string, raw []byte, version int64) (Document, error) {
	var data map[string]any
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			return Document{}, err
		}
	}
	return Document{Path: path, Exists: true, Data: data, Version: version}, nil
}
