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

package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

// Recovery window bounds for DeleteSecret, in days
const (
	defaultRecoveryWindowDays = 30
	minRecoveryWindowDays     = 7
	maxRecoveryWindowDays     = 30
)

// TagPair is a request tag
type TagPair struct {
	Key   string
	Value string
}

// CreateSecretInput carries the CreateSecret request parameters
type CreateSecretInput struct {
	Name               string
	Description        *string
	ClientRequestToken *string
	SecretString       *string
	SecretBinary       []byte
	Tags               []TagPair
}

// CreateSecretOutput is the CreateSecret result
type CreateSecretOutput struct {
	ARN       string
	Name      string
	VersionID string
}

// CreateSecret creates a secret with an initial version staged AWSCURRENT
func (s *Service) CreateSecret(ctx context.Context, in CreateSecretInput) (*CreateSecretOutput, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateToken(in.ClientRequestToken); err != nil {
		return nil, err
	}
	if err := validatePayload(in.SecretString, in.SecretBinary); err != nil {
		return nil, err
	}
	if in.Description != nil && len(*in.Description) > maxDescriptionLength {
		return nil, awserr.InvalidParameter.WithMessage("Description must be at most %d characters.", maxDescriptionLength)
	}
	for _, tag := range in.Tags {
		if err := validateTag(tag); err != nil {
			return nil, err
		}
	}

	versionID := tokenOrNewVersionID(in.ClientRequestToken)
	now := s.now().UTC()

	var out *CreateSecretOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.store.GetSecret(ctx, tx, in.Name)
		if err != nil {
			return err
		}

		if existing != nil {
			if existing.Deleted() {
				return awserr.InvalidRequest.WithMessage(
					"You can't create this secret because a secret with this name is already scheduled for deletion.")
			}

			// Retried creation with the same token and value succeeds
			// without creating anything
			if in.ClientRequestToken != nil {
				version, err := s.store.GetVersion(ctx, tx, existing.ARN, versionID)
				if err != nil {
					return err
				}
				if version != nil && payloadEquals(version, in.SecretString, in.SecretBinary) {
					out = &CreateSecretOutput{ARN: existing.ARN, Name: existing.Name, VersionID: versionID}
					return nil
				}
			}

			return awserr.ResourceExists
		}

		arn, err := mintARN(in.Name)
		if err != nil {
			return err
		}

		secret := &models.Secret{
			ARN:         arn,
			Name:        in.Name,
			Description: in.Description,
			CreatedAt:   now,
		}
		if err := s.store.CreateSecret(ctx, tx, secret); err != nil {
			if storage.IsUniqueViolation(err) {
				return awserr.ResourceExists
			}
			return err
		}

		version := &models.SecretVersion{
			SecretARN:    arn,
			VersionID:    versionID,
			SecretString: in.SecretString,
			SecretBinary: in.SecretBinary,
			CreatedAt:    now,
		}
		if err := s.store.InsertVersion(ctx, tx, version); err != nil {
			return err
		}
		if err := s.store.AddStage(ctx, tx, arn, versionID, models.StageCurrent, now); err != nil {
			return err
		}

		for _, tag := range in.Tags {
			if err := s.store.UpsertTag(ctx, tx, arn, tag.Key, tag.Value, now); err != nil {
				return err
			}
		}

		out = &CreateSecretOutput{ARN: arn, Name: in.Name, VersionID: versionID}
		return nil
	})
	if err != nil {
		return nil, s.opError("create secret", err)
	}
	return out, nil
}

// SecretDescription is the DescribeSecret result; it never carries secret
// material
type SecretDescription struct {
	ARN                string
	Name               string
	Description        *string
	CreatedDate        time.Time
	LastChangedDate    *time.Time
	LastAccessedDate   *time.Time
	DeletedDate        *time.Time
	VersionIDsToStages map[string][]string
	Tags               []models.SecretTag
}

// DescribeSecret returns all metadata for a secret. Soft-deleted secrets
// remain describable.
func (s *Service) DescribeSecret(ctx context.Context, secretID string) (*SecretDescription, error) {
	var out *SecretDescription
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, secretID)
		if err != nil {
			return err
		}
		if secret == nil {
			return awserr.ResourceNotFound
		}

		tags, err := s.store.ListTags(ctx, tx, secret.ARN)
		if err != nil {
			return err
		}

		stages, err := s.store.VersionStages(ctx, tx, secret.ARN)
		if err != nil {
			return err
		}

		// The stages map has one entry per version, so its size bounds the page
		versions, err := s.store.ListVersions(ctx, tx, secret.ARN, true, int64(len(stages))+1, 0)
		if err != nil {
			return err
		}

		out = &SecretDescription{
			ARN:                secret.ARN,
			Name:               secret.Name,
			Description:        secret.Description,
			CreatedDate:        secret.CreatedAt,
			LastChangedDate:    lastChangedDate(secret, versions, tags),
			LastAccessedDate:   lastAccessedDate(versions),
			DeletedDate:        secret.DeletedAt,
			VersionIDsToStages: stages,
			Tags:               tags,
		}
		return nil
	})
	if err != nil {
		return nil, s.opError("describe secret", err)
	}
	return out, nil
}

// lastChangedDate derives the most recent mutation instant from versions,
// the secret row and tag updates
func lastChangedDate(secret *models.Secret, versions []*models.SecretVersion, tags []models.SecretTag) *time.Time {
	var latest *time.Time

	consider := func(t *time.Time) {
		if t != nil && (latest == nil || t.After(*latest)) {
			value := *t
			latest = &value
		}
	}

	consider(secret.UpdatedAt)
	for _, version := range versions {
		createdAt := version.CreatedAt
		consider(&createdAt)
	}
	for _, tag := range tags {
		consider(tag.UpdatedAt)
	}
	return latest
}

// lastAccessedDate derives the most recent access instant across versions
func lastAccessedDate(versions []*models.SecretVersion) *time.Time {
	var latest *time.Time
	for _, version := range versions {
		if version.LastAccessedAt != nil && (latest == nil || version.LastAccessedAt.After(*latest)) {
			value := *version.LastAccessedAt
			latest = &value
		}
	}
	return latest
}

// UpdateSecretInput carries the UpdateSecret request parameters
type UpdateSecretInput struct {
	SecretID           string
	ClientRequestToken *string
	Description        *string
	SecretString       *string
	SecretBinary       []byte
}

// UpdateSecretOutput is the UpdateSecret result; VersionID is set only when
// new secret material was stored
type UpdateSecretOutput struct {
	ARN       string
	Name      string
	VersionID *string
}

// UpdateSecret updates the description and/or stores a new AWSCURRENT
// version when secret material is supplied
func (s *Service) UpdateSecret(ctx context.Context, in UpdateSecretInput) (*UpdateSecretOutput, error) {
	if err := validateToken(in.ClientRequestToken); err != nil {
		return nil, err
	}
	if in.Description != nil && len(*in.Description) > maxDescriptionLength {
		return nil, awserr.InvalidParameter.WithMessage("Description must be at most %d characters.", maxDescriptionLength)
	}

	hasPayload := in.SecretString != nil || in.SecretBinary != nil
	if hasPayload {
		if err := validatePayload(in.SecretString, in.SecretBinary); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()

	var out *UpdateSecretOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, in.SecretID)
		if err != nil {
			return err
		}
		if secret == nil {
			return awserr.ResourceNotFound
		}
		if secret.Deleted() {
			return awserr.InvalidRequest.WithMessage(
				"You can't perform this operation on the secret because it was marked for deletion.")
		}

		out = &UpdateSecretOutput{ARN: secret.ARN, Name: secret.Name}

		if in.Description != nil {
			if err := s.store.UpdateSecretDescription(ctx, tx, secret.ARN, *in.Description, now); err != nil {
				return err
			}
		}

		if !hasPayload {
			return nil
		}

		versionID := tokenOrNewVersionID(in.ClientRequestToken)

		if in.ClientRequestToken != nil {
			existing, err := s.store.GetVersion(ctx, tx, secret.ARN, versionID)
			if err != nil {
				return err
			}
			if existing != nil {
				if !payloadEquals(existing, in.SecretString, in.SecretBinary) {
					return awserr.ResourceExists
				}
				out.VersionID = &versionID
				return nil
			}
		}

		version := &models.SecretVersion{
			SecretARN:    secret.ARN,
			VersionID:    versionID,
			SecretString: in.SecretString,
			SecretBinary: in.SecretBinary,
			CreatedAt:    now,
		}
		if err := s.store.InsertVersion(ctx, tx, version); err != nil {
			if storage.IsUniqueViolation(err) {
				return awserr.ResourceExists
			}
			return err
		}

		if err := s.rotateCurrentStage(ctx, tx, secret.ARN, versionID, now); err != nil {
			return err
		}

		out.VersionID = &versionID
		return nil
	})
	if err != nil {
		return nil, s.opError("update secret", err)
	}
	return out, nil
}

// DeleteSecretInput carries the DeleteSecret request parameters
type DeleteSecretInput struct {
	SecretID                   string
	RecoveryWindowInDays       *int64
	ForceDeleteWithoutRecovery bool
}

// DeleteSecretOutput is the DeleteSecret result
type DeleteSecretOutput struct {
	ARN          string
	Name         string
	DeletionDate time.Time
}

// DeleteSecret soft-deletes a secret with a recovery window, or hard-deletes
// immediately when ForceDeleteWithoutRecovery is set
func (s *Service) DeleteSecret(ctx context.Context, in DeleteSecretInput) (*DeleteSecretOutput, error) {
	if in.ForceDeleteWithoutRecovery && in.RecoveryWindowInDays != nil {
		return nil, awserr.InvalidParameterCombination.WithMessage(
			"You can't use ForceDeleteWithoutRecovery in conjunction with RecoveryWindowInDays.")
	}

	windowDays := int64(defaultRecoveryWindowDays)
	if in.RecoveryWindowInDays != nil {
		windowDays = *in.RecoveryWindowInDays
		if windowDays < minRecoveryWindowDays || windowDays > maxRecoveryWindowDays {
			return nil, awserr.InvalidParameter.WithMessage(
				"RecoveryWindowInDays must be between %d and %d days.", minRecoveryWindowDays, maxRecoveryWindowDays)
		}
	}

	now := s.now().UTC()

	var out *DeleteSecretOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, in.SecretID)
		if err != nil {
			return err
		}
		if secret == nil {
			return awserr.ResourceNotFound
		}

		if in.ForceDeleteWithoutRecovery {
			if err := s.store.HardDeleteSecret(ctx, tx, secret.ARN); err != nil {
				return err
			}
			out = &DeleteSecretOutput{ARN: secret.ARN, Name: secret.Name, DeletionDate: now}
			return nil
		}

		// Deleting an already soft-deleted secret is idempotent; the
		// original schedule stands
		if secret.Deleted() {
			out = &DeleteSecretOutput{ARN: secret.ARN, Name: secret.Name, DeletionDate: *secret.ScheduledDeleteAt}
			return nil
		}

		scheduledAt := now.AddDate(0, 0, int(windowDays))
		if err := s.store.ScheduleDelete(ctx, tx, secret.ARN, now, scheduledAt); err != nil {
			return err
		}

		out = &DeleteSecretOutput{ARN: secret.ARN, Name: secret.Name, DeletionDate: scheduledAt}
		return nil
	})
	if err != nil {
		return nil, s.opError("delete secret", err)
	}
	return out, nil
}

// RestoreSecretOutput is the RestoreSecret result
type RestoreSecretOutput struct {
	ARN  string
	Name string
}

// RestoreSecret cancels a scheduled deletion. Restoring a live secret is a
// no-op success.
func (s *Service) RestoreSecret(ctx context.Context, secretID string) (*RestoreSecretOutput, error) {
	var out *RestoreSecretOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, secretID)
		if err != nil {
			return err
		}
		if secret == nil {
			return awserr.ResourceNotFound
		}

		if err := s.store.CancelDelete(ctx, tx, secret.ARN); err != nil {
			return err
		}

		out = &RestoreSecretOutput{ARN: secret.ARN, Name: secret.Name}
		return nil
	})
	if err != nil {
		return nil, s.opError("restore secret", err)
	}
	return out, nil
}

// opError maps storage failures to InternalFailure while passing AWS-shaped
// errors through untouched
func (s *Service) opError(op string, err error) error {
	if apiErr, ok := err.(*awserr.Error); ok {
		return apiErr
	}
	s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
	if storage.IsUniqueViolation(err) {
		return awserr.ResourceExists
	}
	return awserr.InternalFailure
}

func validateTag(tag TagPair) error {
	if tag.Key == "" || len(tag.Key) > maxTagKeyLength {
		return awserr.InvalidParameter.WithMessage("Tag keys must be between 1 and %d characters.", maxTagKeyLength)
	}
	if len(tag.Value) > maxTagValueLength {
		return awserr.InvalidParameter.WithMessage("Tag values must be at most %d characters.", maxTagValueLength)
	}
	return nil
}
