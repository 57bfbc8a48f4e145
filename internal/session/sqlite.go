package session

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Initialize opens the local session database.
func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the key/value table backing the session store.
func Migrate(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS session_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SQLiteStore persists the session across restarts under the two fixed
// keys. Save and Clear run in one transaction so the token and the user
// are never observed half-written.
type SQLiteStore struct {
	db     *sql.DB
	cipher Cipher
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// NewEncryptedSQLiteStore wraps the same table with at-rest encryption.
func NewEncryptedSQLiteStore(db *sql.DB, cipher Cipher) *SQLiteStore {
	return &SQLiteStore{db: db, cipher: cipher}
}

func (s *SQLiteStore) Read() (*Session, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM session_store WHERE key IN (?, ?)`,
		tokenKey, userKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	token, hasToken := values[tokenKey]
	rawUser, hasUser := values[userKey]
	// A partial session counts as absent.
	if !hasToken || !hasUser {
		return nil, nil
	}

	if s.cipher != nil {
		plainToken, err := s.cipher.Open(token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt session token: %w", err)
		}
		plainUser, err := s.cipher.Open(rawUser)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt session user: %w", err)
		}
		token = plainToken
		rawUser = plainUser
	}

	var user models.LineUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}

	return &Session{Token: token, User: user}, nil
}

func (s *SQLiteStore) Save(token string, user models.LineUser) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}

	storedToken := token
	storedUser := string(rawUser)
	if s.cipher != nil {
		if storedToken, err = s.cipher.Seal(storedToken); err != nil {
			return fmt.Errorf("failed to encrypt session token: %w", err)
		}
		if storedUser, err = s.cipher.Seal(storedUser); err != nil {
			return fmt.Errorf("failed to encrypt session user: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin session save: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO session_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := tx.Exec(upsert, tokenKey, storedToken); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	if _, err := tx.Exec(upsert, userKey, storedUser); err != nil {
		return fmt.Errorf("failed to save session user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(
		`DELETE FROM session_store WHERE key IN (?, ?)`,
		tokenKey, userKey,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
