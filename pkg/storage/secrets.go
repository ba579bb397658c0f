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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
)

// Q selects the executor for a query: pass nil to run against the store's
// database handle, or a transaction from WithTx
func (s *Store) q(tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return s.db
}

// CreateSecret inserts a new secret row
func (s *Store) CreateSecret(ctx context.Context, tx *sql.Tx, secret *models.Secret) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO secrets (arn, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, secret.ARN, secret.Name, secret.Description, secret.CreatedAt.UTC())
	return err
}

// GetSecret retrieves a secret where the name or the ARN matches secretID.
// Returns nil when no such secret exists.
func (s *Store) GetSecret(ctx context.Context, tx *sql.Tx, secretID string) (*models.Secret, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT arn, name, description, created_at, updated_at, deleted_at, scheduled_delete_at
		FROM secrets
		WHERE name = ? OR arn = ?
		LIMIT 1
	`, secretID, secretID)

	return scanSecret(row)
}

func scanSecret(row *sql.Row) (*models.Secret, error) {
	secret := &models.Secret{}
	var description sql.NullString
	var updatedAt, deletedAt, scheduledAt sql.NullTime

	err := row.Scan(&secret.ARN, &secret.Name, &description,
		&secret.CreatedAt, &updatedAt, &deletedAt, &scheduledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	secret.Description = nullStringPtr(description)
	secret.UpdatedAt = nullTimePtr(updatedAt)
	secret.DeletedAt = nullTimePtr(deletedAt)
	secret.ScheduledDeleteAt = nullTimePtr(scheduledAt)
	return secret, nil
}

// UpdateSecretDescription sets the description and bumps updated_at
func (s *Store) UpdateSecretDescription(ctx context.Context, tx *sql.Tx, arn, description string, now time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE secrets SET description = ?, updated_at = ? WHERE arn = ?
	`, description, now.UTC(), arn)
	return err
}

// ScheduleDelete marks a secret soft-deleted with its scheduled removal instant
func (s *Store) ScheduleDelete(ctx context.Context, tx *sql.Tx, arn string, deletedAt, scheduledAt time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE secrets SET deleted_at = ?, scheduled_delete_at = ? WHERE arn = ?
	`, deletedAt.UTC(), scheduledAt.UTC(), arn)
	return err
}

// CancelDelete clears the soft-delete marker
func (s *Store) CancelDelete(ctx context.Context, tx *sql.Tx, arn string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE secrets SET deleted_at = NULL, scheduled_delete_at = NULL WHERE arn = ?
	`, arn)
	return err
}

// HardDeleteSecret removes a secret and, via cascade, its versions, stages
// and tags
func (s *Store) HardDeleteSecret(ctx context.Context, tx *sql.Tx, arn string) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM secrets WHERE arn = ?`, arn)
	return err
}

// PurgeScheduledSecrets hard-deletes every secret whose scheduled removal
// instant has passed. Returns the number of secrets removed.
func (s *Store) PurgeScheduledSecrets(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	result, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM secrets WHERE scheduled_delete_at IS NOT NULL AND scheduled_delete_at < ?
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PurgeExcessVersions removes unstaged versions beyond the 100 newest per
// secret when they are older than the cutoff
func (s *Store) PurgeExcessVersions(ctx context.Context, tx *sql.Tx, cutoff time.Time) (int64, error) {
	result, err := s.q(tx).ExecContext(ctx, `
		WITH ranked_versions AS (
			SELECT secret_arn, version_id, created_at,
				ROW_NUMBER() OVER (
					PARTITION BY secret_arn
					ORDER BY created_at DESC
				) AS row_number
			FROM secrets_versions
		)
		DELETE FROM secrets_versions
		WHERE (secret_arn, version_id) IN (
			SELECT rv.secret_arn, rv.version_id
			FROM ranked_versions rv
			WHERE rv.row_number > 100
				AND rv.created_at < ?
				AND NOT EXISTS (
					SELECT 1 FROM secret_version_stages st
					WHERE st.secret_arn = rv.secret_arn AND st.version_id = rv.version_id
				)
		)
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertVersion stores a new secret version, sealing its payload with the
// store cipher
func (s *Store) InsertVersion(ctx context.Context, tx *sql.Tx, version *models.SecretVersion) error {
	var secretString, secretBinary []byte
	var err error

	switch {
	case version.SecretString != nil:
		secretString, err = s.cipher.Seal([]byte(*version.SecretString))
	case version.SecretBinary != nil:
		secretBinary, err = s.cipher.Seal(version.SecretBinary)
	default:
		return fmt.Errorf("version has no payload")
	}
	if err != nil {
		return fmt.Errorf("failed to seal version payload: %w", err)
	}

	_, err = s.q(tx).ExecContext(ctx, `
		INSERT INTO secrets_versions (secret_arn, version_id, secret_string, secret_binary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, version.SecretARN, version.VersionID, secretString, secretBinary, version.CreatedAt.UTC())
	return err
}

// GetVersion retrieves a single version by id with its stages, or nil
func (s *Store) GetVersion(ctx context.Context, tx *sql.Tx, arn, versionID string) (*models.SecretVersion, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT secret_arn, version_id, secret_string, secret_binary, created_at, last_accessed_at
		FROM secrets_versions
		WHERE secret_arn = ? AND version_id = ?
		LIMIT 1
	`, arn, versionID)
	if err != nil {
		return nil, err
	}

	versions, err := s.collectVersions(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return versions[0], nil
}

// GetVersionByStage retrieves the version currently holding a staging label,
// or nil
func (s *Store) GetVersionByStage(ctx context.Context, tx *sql.Tx, arn, label string) (*models.SecretVersion, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT v.secret_arn, v.version_id, v.secret_string, v.secret_binary, v.created_at, v.last_accessed_at
		FROM secrets_versions v
		JOIN secret_version_stages st
			ON st.secret_arn = v.secret_arn AND st.version_id = v.version_id AND st.label = ?
		WHERE v.secret_arn = ?
		LIMIT 1
	`, label, arn)
	if err != nil {
		return nil, err
	}

	versions, err := s.collectVersions(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return versions[0], nil
}

// ListVersions returns a page of versions for a secret, newest first.
// Deprecated versions (no staging labels) are excluded unless requested.
func (s *Store) ListVersions(ctx context.Context, tx *sql.Tx, arn string, includeDeprecated bool, limit, offset int64) ([]*models.SecretVersion, error) {
	query := `
		SELECT v.secret_arn, v.version_id, v.secret_string, v.secret_binary, v.created_at, v.last_accessed_at
		FROM secrets_versions v
		WHERE v.secret_arn = ?`
	if !includeDeprecated {
		query += `
			AND EXISTS (
				SELECT 1 FROM secret_version_stages st
				WHERE st.secret_arn = v.secret_arn AND st.version_id = v.version_id
			)`
	}
	query += `
		ORDER BY v.created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := s.q(tx).QueryContext(ctx, query, arn, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.collectVersions(ctx, tx, rows)
}

// CountVersions counts versions for a secret, optionally including
// deprecated ones
func (s *Store) CountVersions(ctx context.Context, tx *sql.Tx, arn string, includeDeprecated bool) (int64, error) {
	query := `SELECT COUNT(*) FROM secrets_versions v WHERE v.secret_arn = ?`
	if !includeDeprecated {
		query += `
			AND EXISTS (
				SELECT 1 FROM secret_version_stages st
				WHERE st.secret_arn = v.secret_arn AND st.version_id = v.version_id
			)`
	}

	var count int64
	err := s.q(tx).QueryRowContext(ctx, query, arn).Scan(&count)
	return count, err
}

// collectVersions scans version rows, decrypts payloads and loads stages
func (s *Store) collectVersions(ctx context.Context, tx *sql.Tx, rows *sql.Rows) ([]*models.SecretVersion, error) {
	defer rows.Close()

	var versions []*models.SecretVersion
	for rows.Next() {
		version := &models.SecretVersion{}
		var secretString, secretBinary []byte
		var lastAccessed sql.NullTime

		if err := rows.Scan(&version.SecretARN, &version.VersionID,
			&secretString, &secretBinary, &version.CreatedAt, &lastAccessed); err != nil {
			return nil, err
		}
		version.LastAccessedAt = nullTimePtr(lastAccessed)

		switch {
		case secretString != nil:
			plaintext, err := s.cipher.Open(secretString)
			if err != nil {
				return nil, fmt.Errorf("failed to open version payload: %w", err)
			}
			value := string(plaintext)
			version.SecretString = &value
		case secretBinary != nil:
			plaintext, err := s.cipher.Open(secretBinary)
			if err != nil {
				return nil, fmt.Errorf("failed to open version payload: %w", err)
			}
			version.SecretBinary = plaintext
		}

		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, version := range versions {
		stages, err := s.loadStages(ctx, tx, version.SecretARN, version.VersionID)
		if err != nil {
			return nil, err
		}
		version.Stages = stages
	}

	return versions, nil
}

func (s *Store) loadStages(ctx context.Context, tx *sql.Tx, arn, versionID string) ([]string, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT label FROM secret_version_stages
		WHERE secret_arn = ? AND version_id = ?
		ORDER BY created_at, label
	`, arn, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		stages = append(stages, label)
	}
	return stages, rows.Err()
}

// VersionStages maps every version of a secret to its staging labels
func (s *Store) VersionStages(ctx context.Context, tx *sql.Tx, arn string) (map[string][]string, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT v.version_id, st.label
		FROM secrets_versions v
		LEFT JOIN secret_version_stages st
			ON st.secret_arn = v.secret_arn AND st.version_id = v.version_id
		WHERE v.secret_arn = ?
		ORDER BY v.created_at DESC
	`, arn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make(map[string][]string)
	for rows.Next() {
		var versionID string
		var label sql.NullString
		if err := rows.Scan(&versionID, &label); err != nil {
			return nil, err
		}
		if _, ok := stages[versionID]; !ok {
			stages[versionID] = nil
		}
		if label.Valid {
			stages[versionID] = append(stages[versionID], label.String)
		}
	}
	return stages, rows.Err()
}

// AddStage attaches a staging label to a version
func (s *Store) AddStage(ctx context.Context, tx *sql.Tx, arn, versionID, label string, now time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO secret_version_stages (secret_arn, version_id, label, created_at)
		VALUES (?, ?, ?, ?)
	`, arn, versionID, label, now.UTC())
	return err
}

// RemoveStage detaches a staging label from a specific version
func (s *Store) RemoveStage(ctx context.Context, tx *sql.Tx, arn, versionID, label string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM secret_version_stages
		WHERE secret_arn = ? AND version_id = ? AND label = ?
	`, arn, versionID, label)
	return err
}

// RemoveStageFromAll detaches a staging label from whichever version holds it
func (s *Store) RemoveStageFromAll(ctx context.Context, tx *sql.Tx, arn, label string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM secret_version_stages
		WHERE secret_arn = ? AND label = ?
	`, arn, label)
	return err
}

// UpdateVersionLastAccessed records the access instant for a version
func (s *Store) UpdateVersionLastAccessed(ctx context.Context, tx *sql.Tx, arn, versionID string, accessedAt time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE secrets_versions SET last_accessed_at = ?
		WHERE secret_arn = ? AND version_id = ?
	`, accessedAt.UTC(), arn, versionID)
	return err
}

// UpsertTag creates or replaces a tag on a secret. Keys are case-sensitive.
func (s *Store) UpsertTag(ctx context.Context, tx *sql.Tx, arn, key, value string, now time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO secrets_tags (secret_arn, key, value, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (secret_arn, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.created_at
	`, arn, key, value, now.UTC())
	return err
}

// DeleteTag removes a tag from a secret
func (s *Store) DeleteTag(ctx context.Context, tx *sql.Tx, arn, key string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM secrets_tags WHERE secret_arn = ? AND key = ?
	`, arn, key)
	return err
}

// ListTags returns every tag on a secret
func (s *Store) ListTags(ctx context.Context, tx *sql.Tx, arn string) ([]models.SecretTag, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM secrets_tags
		WHERE secret_arn = ?
		ORDER BY key
	`, arn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.SecretTag
	for rows.Next() {
		var tag models.SecretTag
		var updatedAt sql.NullTime
		if err := rows.Scan(&tag.Key, &tag.Value, &tag.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		tag.UpdatedAt = nullTimePtr(updatedAt)
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SecretFilter narrows a secret listing; Key is one of name, description,
// tag-key, tag-value, all and values match as prefixes
type SecretFilter struct {
	Key    string
	Values []string
}

// ListSecretsQuery describes a page of the secret listing
type ListSecretsQuery struct {
	Filters        []SecretFilter
	IncludeDeleted bool
	Limit          int64
	Offset         int64
	Ascending      bool
}

// ListSecrets returns a page of secrets matching the query, ordered by
// creation date
func (s *Store) ListSecrets(ctx context.Context, tx *sql.Tx, query ListSecretsQuery) ([]*models.Secret, error) {
	where, args := buildSecretFilterSQL(query)

	order := "DESC"
	if query.Ascending {
		order = "ASC"
	}

	sqlQuery := `
		SELECT s.arn, s.name, s.description, s.created_at, s.updated_at, s.deleted_at, s.scheduled_delete_at
		FROM secrets s
		` + where + `
		ORDER BY s.created_at ` + order + `
		LIMIT ? OFFSET ?`
	args = append(args, query.Limit, query.Offset)

	rows, err := s.q(tx).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var secrets []*models.Secret
	for rows.Next() {
		secret := &models.Secret{}
		var description sql.NullString
		var updatedAt, deletedAt, scheduledAt sql.NullTime

		if err := rows.Scan(&secret.ARN, &secret.Name, &description,
			&secret.CreatedAt, &updatedAt, &deletedAt, &scheduledAt); err != nil {
			return nil, err
		}

		secret.Description = nullStringPtr(description)
		secret.UpdatedAt = nullTimePtr(updatedAt)
		secret.DeletedAt = nullTimePtr(deletedAt)
		secret.ScheduledDeleteAt = nullTimePtr(scheduledAt)
		secrets = append(secrets, secret)
	}
	return secrets, rows.Err()
}

// CountSecrets counts the secrets matching a listing query
func (s *Store) CountSecrets(ctx context.Context, tx *sql.Tx, query ListSecretsQuery) (int64, error) {
	where, args := buildSecretFilterSQL(query)

	var count int64
	err := s.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets s `+where, args...).Scan(&count)
	return count, err
}

func buildSecretFilterSQL(query ListSecretsQuery) (string, []any) {
	var conditions []string
	var args []any

	if !query.IncludeDeleted {
		conditions = append(conditions, "s.deleted_at IS NULL")
	}

	for _, filter := range query.Filters {
		var clauses []string
		for _, value := range filter.Values {
			prefix := likePrefix(value)
			switch filter.Key {
			case "name":
				clauses = append(clauses, "s.name LIKE ? ESCAPE '\\'")
				args = append(args, prefix)
			case "description":
				clauses = append(clauses, "s.description LIKE ? ESCAPE '\\'")
				args = append(args, prefix)
			case "tag-key":
				clauses = append(clauses, "EXISTS (SELECT 1 FROM secrets_tags t WHERE t.secret_arn = s.arn AND t.key LIKE ? ESCAPE '\\')")
				args = append(args, prefix)
			case "tag-value":
				clauses = append(clauses, "EXISTS (SELECT 1 FROM secrets_tags t WHERE t.secret_arn = s.arn AND t.value LIKE ? ESCAPE '\\')")
				args = append(args, prefix)
			case "all":
				clauses = append(clauses, `(s.name LIKE ? ESCAPE '\'
					OR s.description LIKE ? ESCAPE '\'
					OR EXISTS (SELECT 1 FROM secrets_tags t WHERE t.secret_arn = s.arn
						AND (t.key LIKE ? ESCAPE '\' OR t.value LIKE ? ESCAPE '\')))`)
				args = append(args, prefix, prefix, prefix, prefix)
			}
		}
		if len(clauses) > 0 {
			conditions = append(conditions, "("+strings.Join(clauses, " OR ")+")")
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// likePrefix escapes LIKE metacharacters and appends the wildcard so filter
// values match as prefixes
func likePrefix(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	value = strings.ReplaceAll(value, `_`, `\_`)
	return value + "%"
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
