package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	vector_size INTEGER NOT NULL,
	distance    TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL REFERENCES collections(name),
	id         TEXT NOT NULL,
	payload    TEXT NOT NULL,
	vector     BLOB,
	updated_at TEXT NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_collection_seq ON records(collection, seq);
`

// SQLiteStore is a VectorStore backed by an embedded SQLite database.
// Filters are evaluated in Go over the collection's rows and similarity
// search is an exact scan, which suits the per-user daily volumes involved.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and applies the
// schema. The parent directory is created when missing. The path ":memory:"
// opens a private in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, vectorSize int) (CollectionInfo, error) {
	info, err := s.collection(ctx, name)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return CollectionInfo{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections(name, vector_size, distance, created_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, vectorSize, DistanceCosine, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("creating collection %s: %w", name, err)
	}
	return CollectionInfo{Name: name, VectorSize: vectorSize, Distance: DistanceCosine, Created: true}, nil
}

func (s *SQLiteStore) collection(ctx context.Context, name string) (CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	err := s.db.QueryRowContext(ctx,
		"SELECT vector_size, distance FROM collections WHERE name = ?", name,
	).Scan(&info.VectorSize, &info.Distance)
	if errors.Is(err, sql.ErrNoRows) {
		return CollectionInfo{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return info, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection string, records []Record) error {
	info, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records(collection, id, payload, vector, updated_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   payload = excluded.payload, vector = excluded.vector, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("upserting into %s: record id is required", collection)
		}
		if err := checkDimension(collection, info.VectorSize, r.Vector); err != nil {
			return err
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, string(payload), encodeVector(r.Vector), now); err != nil {
			return fmt.Errorf("upserting %s into %s: %w", r.ID, collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

type sqliteRow struct {
	seq int64
	rec Record
}

// each streams the collection's rows after seq in order, stopping early when
// fn returns false.
func (s *SQLiteStore) each(ctx context.Context, collection string, after int64, withVector bool, fn func(sqliteRow) bool) error {
	if _, err := s.collection(ctx, collection); err != nil {
		return err
	}
	cols := "seq, id, payload, NULL"
	if withVector {
		cols = "seq, id, payload, vector"
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cols+" FROM records WHERE collection = ? AND seq > ? ORDER BY seq", collection, after)
	if err != nil {
		return fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row     sqliteRow
			payload string
			blob    []byte
		)
		if err := rows.Scan(&row.seq, &row.rec.ID, &payload, &blob); err != nil {
			return fmt.Errorf("scanning %s: %w", collection, err)
		}
		if err := json.Unmarshal([]byte(payload), &row.rec.Payload); err != nil {
			return fmt.Errorf("decoding payload of %s: %w", row.rec.ID, err)
		}
		if row.rec.Vector, err = decodeVector(blob); err != nil {
			return fmt.Errorf("decoding vector of %s: %w", row.rec.ID, err)
		}
		if !fn(row) {
			break
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Scroll(ctx context.Context, collection string, req ScrollRequest) (ScrollPage, error) {
	if err := req.Filter.Validate(); err != nil {
		return ScrollPage{}, err
	}
	var after int64
	if req.Offset != "" {
		n, err := strconv.ParseInt(req.Offset, 10, 64)
		if err != nil {
			return ScrollPage{}, fmt.Errorf("invalid scroll offset %q: %w", req.Offset, err)
		}
		after = n
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		page    ScrollPage
		lastSeq int64
	)
	err := s.each(ctx, collection, after, true, func(row sqliteRow) bool {
		if !req.Filter.Matches(row.rec.Payload) {
			return true
		}
		if len(page.Records) == limit {
			page.Next = strconv.FormatInt(lastSeq, 10)
			return false
		}
		page.Records = append(page.Records, row.rec)
		lastSeq = row.seq
		return true
	})
	if err != nil {
		return ScrollPage{}, err
	}
	return page, nil
}

func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]ScoredRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var hits []ScoredRecord
	err := s.each(ctx, collection, 0, true, func(row sqliteRow) bool {
		if row.rec.Vector == nil || !filter.Matches(row.rec.Payload) {
			return true
		}
		hits = append(hits, ScoredRecord{Record: row.rec, Score: cosine(vector, row.rec.Vector)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return topK(hits, limit), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	var seqs []int64
	err := s.each(ctx, collection, 0, false, func(row sqliteRow) bool {
		if filter.Matches(row.rec.Payload) {
			seqs = append(seqs, row.seq)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE seq = ?", seq); err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return len(seqs), nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if filter.Empty() {
		if _, err := s.collection(ctx, collection); err != nil {
			return 0, err
		}
		var n int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("counting %s: %w", collection, err)
		}
		return n, nil
	}
	n := 0
	err := s.each(ctx, collection, 0, false, func(row sqliteRow) bool {
		if filter.Matches(row.rec.Payload) {
			n++
		}
		return true
	})
	return n, err
}
