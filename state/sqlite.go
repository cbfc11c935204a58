package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS persistent_protocol_state (
	uid        INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       INTEGER NOT NULL,
	state      BLOB    NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLiteRecordStore is a RecordStore backed by a SQLite database file.
type SQLiteRecordStore struct {
	db *sql.DB
}

// OpenSQLiteRecordStore opens (and if necessary initializes) the protocol
// state table in the SQLite database at path.
func OpenSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return &SQLiteRecordStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

// List implements RecordStore.
func (s *SQLiteRecordStore) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT uid, kind, state, created_at FROM persistent_protocol_state`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var createdAtMillis int64
		if err := rows.Scan(&record.UID, &record.Kind, &record.Bytes, &createdAtMillis); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
		}
		record.CreatedAt = time.UnixMilli(createdAtMillis)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return records, nil
}

// Insert implements RecordStore.
func (s *SQLiteRecordStore) Insert(kind Kind, data []byte, createdAt time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO persistent_protocol_state (kind, state, created_at) VALUES (?, ?, ?)`,
		kind, data, createdAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	uid, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return uid, nil
}

// Delete implements RecordStore.
func (s *SQLiteRecordStore) Delete(uids []int64) error {
	if len(uids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uids)), ",")
	args := make([]any, len(uids))
	for i, uid := range uids {
		args[i] = uid
	}
	if _, err := s.db.Exec(
		`DELETE FROM persistent_protocol_state WHERE uid IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return nil
}
