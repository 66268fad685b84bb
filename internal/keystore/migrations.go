package keystore

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
)

// schemaVersion is the current forward-only migration target. Version 1
// matches web_auth.py's original schema (keys, params, version tables).
// Version 2 is new: one boolean column per spec.md §4.4 scope, added to
// support scoped authorization the original never had.
const schemaVersion = 2

func (k *KeyStore) migrate() error {
	version, err := k.currentVersion()
	if err != nil {
		return err
	}

	if version < 1 {
		if err := k.migrateToV1(); err != nil {
			return err
		}
		version = 1
	}
	if version < 2 {
		if err := k.migrateToV2(); err != nil {
			return err
		}
		version = 2
	}

	return k.loadParams()
}

func (k *KeyStore) currentVersion() (int, error) {
	row := k.db.QueryRow(`SELECT version FROM version`)
	var version int
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		// table does not exist yet
		return 0, nil
	}
	return version, nil
}

func (k *KeyStore) migrateToV1() error {
	tx, err := k.db.Begin()
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "starting key store migration")
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keys (hash TEXT PRIMARY KEY, expires INTEGER, comment TEXT)`,
		`CREATE TABLE IF NOT EXISTS params (idx INTEGER PRIMARY KEY, salt TEXT, iterations INTEGER)`,
		`CREATE TABLE IF NOT EXISTS version (version INTEGER PRIMARY KEY)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return apperrors.Wrap(err, apperrors.TypeFatal, "creating key store tables")
		}
	}

	salt, err := randomHexKey()
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "generating key store salt")
	}
	if _, err := tx.Exec(`INSERT INTO params (idx, salt, iterations) VALUES (0, ?, ?)`, salt, iterations); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "storing key store salt")
	}
	if _, err := tx.Exec(`INSERT INTO version (version) VALUES (1)`); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "recording key store schema version")
	}
	return tx.Commit()
}

func (k *KeyStore) migrateToV2() error {
	tx, err := k.db.Begin()
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "starting key store migration")
	}
	defer tx.Rollback()

	for _, scope := range AllScopes {
		stmt := fmt.Sprintf(`ALTER TABLE keys ADD COLUMN %s INTEGER NOT NULL DEFAULT 0`, scope)
		if _, err := tx.Exec(stmt); err != nil {
			return apperrors.Wrap(err, apperrors.TypeFatal, "adding scope column "+scope)
		}
	}
	if _, err := tx.Exec(`UPDATE version SET version = 2`); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "recording key store schema version")
	}
	return tx.Commit()
}

func (k *KeyStore) loadParams() error {
	row := k.db.QueryRow(`SELECT salt, iterations FROM params WHERE idx = 0`)
	return row.Scan(&k.salt, &k.iterations)
}

func randomHexKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
