// Package sqlstore implements a storage.LeafStore backed by a SQL table,
// matching the reference schema from spec section 6.1:
//
//	CREATE TABLE leaf (
//	    id    INTEGER PRIMARY KEY AUTOINCREMENT,
//	    entry BLOB,
//	    hash  BLOB
//	);
//
// The package is driver-agnostic: callers open their own *sql.DB (with
// whichever driver they blank-import, e.g. modernc.org/sqlite) and hand it
// to New. This mirrors pymerkle's
// SqliteTree, generalized from sqlite3 specifically to any database/sql
// driver that accepts `?` placeholders and AUTOINCREMENT semantics.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakuralog/merkle/hash"
	"github.com/sakuralog/merkle/storage"
)

// DefaultChunkSize is the number of entries grouped per transaction by
// AppendBatch.
const DefaultChunkSize = 100_000

// Store is a SQL-backed LeafStore.
type Store struct {
	db     *sql.DB
	hasher *hash.Hasher
}

// New opens (creating if necessary) the leaf table on db and returns a
// Store that hashes appended entries with h.
func New(ctx context.Context, db *sql.DB, h *hash.Hasher) (*Store, error) {
	const createTable = `
		CREATE TABLE IF NOT EXISTS leaf (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			entry BLOB,
			hash  BLOB
		)`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("sqlstore: create table: %w", err)
	}
	return &Store{db: db, hasher: h}, nil
}

// Append implements storage.LeafStore.
func (s *Store) Append(ctx context.Context, entry []byte) (uint64, error) {
	digest := s.hasher.HashLeaf(entry)

	res, err := s.db.ExecContext(ctx, `INSERT INTO leaf(entry, hash) VALUES (?, ?)`, entry, digest)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: append leaf: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: append leaf: last insert id: %w", err)
	}
	return uint64(id), nil
}

// AppendBatch hashes and inserts entries in chunks of chunkSize, one
// transaction per chunk, and returns the index of the last inserted entry.
// A chunkSize of 0 uses DefaultChunkSize. Mirrors pymerkle's
// append_entries/_hash_per_chunk bulk-ingestion helper.
func (s *Store) AppendBatch(ctx context.Context, entries [][]byte, chunkSize int) (uint64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var lastID int64
	for offset := 0; offset < len(entries); offset += chunkSize {
		end := offset + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[offset:end]

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: append batch: begin: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO leaf(entry, hash) VALUES (?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlstore: append batch: prepare: %w", err)
		}

		for _, entry := range chunk {
			digest := s.hasher.HashLeaf(entry)
			res, err := stmt.ExecContext(ctx, entry, digest)
			if err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return 0, fmt.Errorf("sqlstore: append batch: insert: %w", err)
			}
			lastID, _ = res.LastInsertId()
		}
		_ = stmt.Close()

		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("sqlstore: append batch: commit: %w", err)
		}
	}

	return uint64(lastID), nil
}

// Leaf implements storage.LeafStore.
func (s *Store) Leaf(ctx context.Context, index uint64) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT hash FROM leaf WHERE id = ?`, index)

	var digest []byte
	if err := row.Scan(&digest); err != nil {
		if err == sql.ErrNoRows {
			size, _ := s.Size(ctx)
			return nil, &storage.OutOfRangeError{Offset: index, Width: 1, Size: size}
		}
		return nil, fmt.Errorf("sqlstore: leaf %d: %w", index, err)
	}
	return digest, nil
}

// LeafRange implements storage.LeafStore.
func (s *Store) LeafRange(ctx context.Context, offset, width uint64) ([][]byte, error) {
	if width == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM leaf WHERE id BETWEEN ? AND ? ORDER BY id`, offset+1, offset+width)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: leaf range [%d, %d): %w", offset, offset+width, err)
	}
	defer rows.Close()

	out := make([][]byte, 0, width)
	for rows.Next() {
		var digest []byte
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("sqlstore: leaf range [%d, %d): scan: %w", offset, offset+width, err)
		}
		out = append(out, digest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: leaf range [%d, %d): %w", offset, offset+width, err)
	}
	if uint64(len(out)) != width {
		size, _ := s.Size(ctx)
		return nil, &storage.OutOfRangeError{Offset: offset, Width: width, Size: size}
	}
	return out, nil
}

// Size implements storage.LeafStore.
func (s *Store) Size(ctx context.Context) (uint64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaf`)

	var size uint64
	if err := row.Scan(&size); err != nil {
		return 0, fmt.Errorf("sqlstore: size: %w", err)
	}
	return size, nil
}

// Entry returns the raw, unhashed data stored at the given 1-based index.
func (s *Store) Entry(ctx context.Context, index uint64) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT entry FROM leaf WHERE id = ?`, index)

	var entry []byte
	if err := row.Scan(&entry); err != nil {
		if err == sql.ErrNoRows {
			size, _ := s.Size(ctx)
			return nil, &storage.OutOfRangeError{Offset: index, Width: 1, Size: size}
		}
		return nil, fmt.Errorf("sqlstore: entry %d: %w", index, err)
	}
	return entry, nil
}
