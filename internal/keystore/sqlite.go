package keystore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKeystore is a SQLite-backed Keystore, grounded on the teacher
// pack's pkg/database schema/statement layering (OpenDatabase +
// initializeSchema + prepared statements), narrowed to a single
// key-records table.
type SQLiteKeystore struct {
	db *sql.DB
}

// OpenSQLiteKeystore opens (creating if absent) a SQLite database at
// path and ensures its schema exists.
func OpenSQLiteKeystore(path string) (*SQLiteKeystore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("keystore: open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("keystore: init schema: %w", err)
	}
	return &SQLiteKeystore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS keys (
			key_id          TEXT PRIMARY KEY,
			algorithm       TEXT NOT NULL,
			public_key_pem  TEXT NOT NULL,
			private_key_pem TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (k *SQLiteKeystore) Put(rec Record) error {
	_, err := k.db.Exec(
		`INSERT INTO keys (key_id, algorithm, public_key_pem, private_key_pem)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key_id) DO UPDATE SET
		   algorithm = excluded.algorithm,
		   public_key_pem = excluded.public_key_pem,
		   private_key_pem = excluded.private_key_pem`,
		rec.KeyID, rec.Algorithm, rec.PublicKeyPEM, rec.PrivateKeyPEM,
	)
	if err != nil {
		return fmt.Errorf("keystore: put %s: %w", rec.KeyID, err)
	}
	return nil
}

func (k *SQLiteKeystore) Get(kid string) (Record, error) {
	var rec Record
	rec.KeyID = kid
	row := k.db.QueryRow(
		`SELECT algorithm, public_key_pem, private_key_pem FROM keys WHERE key_id = ?`, kid)
	if err := row.Scan(&rec.Algorithm, &rec.PublicKeyPEM, &rec.PrivateKeyPEM); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("keystore: get %s: %w", kid, err)
	}
	return rec, nil
}

func (k *SQLiteKeystore) Delete(kid string) error {
	if _, err := k.db.Exec(`DELETE FROM keys WHERE key_id = ?`, kid); err != nil {
		return fmt.Errorf("keystore: delete %s: %w", kid, err)
	}
	return nil
}

func (k *SQLiteKeystore) List() ([]string, error) {
	rows, err := k.db.Query(`SELECT key_id FROM keys ORDER BY key_id`)
	if err != nil {
		return nil, fmt.Errorf("keystore: list: %w", err)
	}
	defer rows.Close()

	var kids []string
	for rows.Next() {
		var kid string
		if err := rows.Scan(&kid); err != nil {
			return nil, fmt.Errorf("keystore: list: %w", err)
		}
		kids = append(kids, kid)
	}
	return kids, rows.Err()
}

func (k *SQLiteKeystore) Close() error {
	return k.db.Close()
}
