package rdb

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const recordsSchema = `CREATE TABLE IF NOT EXISTS records (
	kind INTEGER NOT NULL,
	id   INTEGER NOT NULL,
	data BLOB    NOT NULL,
	PRIMARY KEY (kind, id)
)`

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Get(kind Kind, id ID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM records WHERE kind = ? AND id = ?", int(kind), int64(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v %d", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %v %d: %w", kind, id, err)
	}
	return data, nil
}

func (s *SQLiteStore) Put(kind Kind, id ID, data []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO records (kind, id, data) VALUES (?, ?, ?)", int(kind), int64(id), data)
	if err != nil {
		return fmt.Errorf("write %v %d: %w", kind, id, err)
	}
	return nil
}

// IDs lists stored ids of kind in ascending order.
func (s *SQLiteStore) IDs(kind Kind) ([]ID, error) {
	rows, err := s.db.Query("SELECT id FROM records WHERE kind = ? ORDER BY id", int(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, ID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
