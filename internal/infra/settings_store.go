// Package infra implements infrastructure concerns (storage, process,
// status projection, configuration).
package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/clipsentry/clipsentry/internal/domain"
)

const settingsDBName = "settings.db"

// Persisted settings keys. These are the external record's field names.
const (
	keyInterval     = "clipboardInterval"
	keyEnabled      = "extensionEnabled"
	keyPasswordOnly = "clearOnlyOnPasswordPaste"
)

// EncryptedSettingsStore implements domain.SettingsStore on a SQLCipher
// encrypted SQLite database. Missing keys load as defaults, so a fresh
// database behaves like the default record.
type EncryptedSettingsStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedSettingsStore opens (or creates) the encrypted settings
// database. The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedSettingsStore(dataDir string, key []byte) (*EncryptedSettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, settingsDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096",
		dbPath, hex.EncodeToString(key))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open encrypted settings database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to encrypted settings database: %w", err)
	}

	store := &EncryptedSettingsStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}
	return store, nil
}

func (s *EncryptedSettingsStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the persisted record, applying defaults for any missing key
// and clamping out-of-domain values.
func (s *EncryptedSettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return settings, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return settings, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		switch k {
		case keyInterval:
			if n, err := strconv.Atoi(v); err == nil {
				settings.ClearDelaySeconds = n
			}
		case keyEnabled:
			settings.Enabled = v == "true"
		case keyPasswordOnly:
			settings.ClearOnlyOnPasswordPaste = v == "true"
		}
	}
	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return settings.Normalize(), nil
}

// Save persists the full record.
func (s *EncryptedSettingsStore) Save(ctx context.Context, settings domain.Settings) error {
	now := time.Now().Unix()
	record := map[string]string{
		keyInterval:     strconv.Itoa(settings.ClearDelaySeconds),
		keyEnabled:      strconv.FormatBool(settings.Enabled),
		keyPasswordOnly: strconv.FormatBool(settings.ClearOnlyOnPasswordPaste),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	for k, v := range record {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			k, v, now); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Path returns the database file path (for status output and tests).
func (s *EncryptedSettingsStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedSettingsStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*EncryptedSettingsStore)(nil)
