/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package storage provides the encrypted SQLite store backing the secret
// model. Secret material is sealed with AES-256-GCM under a key derived from
// the operator passphrase; a wrong passphrase fails at open time with
// ErrDatabaseLocked before any data is served.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/encryption"
)

//go:embed schema.sql
var schemaSQL string

const (
	metaKeySalt     = "kdf_salt"
	metaKeyKeycheck = "keycheck"
)

// keycheckSentinel is sealed at database creation and opened on every
// subsequent unlock to prove the passphrase is right
var keycheckSentinel = []byte("loker.store.v1")

// Store is the encrypted secret store
type Store struct {
	db     *sql.DB
	cipher *encryption.Cipher
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and unlocks it with
// the given passphrase
func Open(path, passphrase string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=ON&_loc=UTC", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer connection serializes all transactions and prevents
	// "database is locked" errors under concurrent requests
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.unlock(passphrase); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store initialized",
		zap.String("database_path", path),
		zap.String("journal_mode", "WAL"))

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database schema if it doesn't exist
func (s *Store) initSchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}

	if version == 0 {
		s.logger.Info("initializing database schema", zap.Int("version", 1))

		if _, err := s.db.Exec(schemaSQL); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		return nil
	}

	s.logger.Debug("database schema already exists", zap.Int("version", version))
	return nil
}

// unlock derives the store key from the passphrase and proves it against the
// persisted keycheck sentinel
func (s *Store) unlock(passphrase string) error {
	salt, err := s.metaGet(metaKeySalt)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to read kdf salt: %w", err)
	}

	if salt == nil {
		// Fresh database: mint a salt and seal the sentinel
		salt, err = encryption.NewSalt()
		if err != nil {
			return err
		}

		cipher, err := encryption.NewCipher(encryption.DeriveKey(passphrase, salt))
		if err != nil {
			return err
		}

		sealed, err := cipher.Seal(keycheckSentinel)
		if err != nil {
			return err
		}

		if err := s.metaPut(metaKeySalt, salt); err != nil {
			return fmt.Errorf("failed to persist kdf salt: %w", err)
		}
		if err := s.metaPut(metaKeyKeycheck, sealed); err != nil {
			return fmt.Errorf("failed to persist keycheck: %w", err)
		}

		s.cipher = cipher
		return nil
	}

	cipher, err := encryption.NewCipher(encryption.DeriveKey(passphrase, salt))
	if err != nil {
		return err
	}

	sealed, err := s.metaGet(metaKeyKeycheck)
	if err != nil {
		return fmt.Errorf("failed to read keycheck: %w", err)
	}

	opened, err := cipher.Open(sealed)
	if err != nil || !bytes.Equal(opened, keycheckSentinel) {
		return ErrDatabaseLocked
	}

	s.cipher = cipher
	return nil
}

func (s *Store) metaGet(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) metaPut(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// WithTx runs fn inside a transaction, rolling back on error. All composite
// secret-model operations go through here so cross-row invariants hold
// atomically.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DB exposes the raw handle for read-only queries outside a transaction
func (s *Store) DB() *sql.DB {
	return s.db
}

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
