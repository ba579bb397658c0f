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

package storage

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
)

const testPassphrase = "correct horse battery staple"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath, testPassphrase, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_CreatesDatabase(t *testing.T) {
	store := newTestStore(t)
	assert.NotNil(t, store.DB())
}

func TestOpen_WrongPassphraseLocked(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath, testPassphrase, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(dbPath, "wrong passphrase", zap.NewNop())
	assert.ErrorIs(t, err, ErrDatabaseLocked)
}

func TestOpen_ReopenWithCorrectPassphrase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath, testPassphrase, zap.NewNop())
	require.NoError(t, err)

	now := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	secret := &models.Secret{ARN: "arn:aws:secretsmanager:us-east-1:000000000000:secret:a-XXXXXX", Name: "a", CreatedAt: now}
	require.NoError(t, store.CreateSecret(ctx, nil, secret))

	value := "hunter2"
	require.NoError(t, store.InsertVersion(ctx, nil, &models.SecretVersion{
		SecretARN:    secret.ARN,
		VersionID:    "version-1",
		SecretString: &value,
		CreatedAt:    now,
	}))
	require.NoError(t, store.Close())

	store, err = Open(dbPath, testPassphrase, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	version, err := store.GetVersion(ctx, nil, secret.ARN, "version-1")
	require.NoError(t, err)
	require.NotNil(t, version)
	require.NotNil(t, version.SecretString)
	assert.Equal(t, "hunter2", *version.SecretString)
}

func TestStore_SecretMaterialEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	secret := &models.Secret{ARN: "arn:test", Name: "a", CreatedAt: now}
	require.NoError(t, store.CreateSecret(ctx, nil, secret))

	plaintext := "super-secret-value"
	require.NoError(t, store.InsertVersion(ctx, nil, &models.SecretVersion{
		SecretARN:    secret.ARN,
		VersionID:    "version-1",
		SecretString: &plaintext,
		CreatedAt:    now,
	}))

	// The raw column must not contain the plaintext
	var raw []byte
	err := store.DB().QueryRow(
		`SELECT secret_string FROM secrets_versions WHERE secret_arn = ? AND version_id = ?`,
		secret.ARN, "version-1").Scan(&raw)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.False(t, bytes.Contains(raw, []byte(plaintext)))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)

	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.CreateSecret(ctx, tx, &models.Secret{ARN: "arn:rollback", Name: "rollback", CreatedAt: now}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	secret, err := store.GetSecret(ctx, nil, "rollback")
	require.NoError(t, err)
	assert.Nil(t, secret, "rolled back secret must not be visible")
}
