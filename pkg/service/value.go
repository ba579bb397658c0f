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

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
	"github.com/jacobtread/local-aws-secret-manager/pkg/utils"
)

// Version stage list constraints
const (
	maxVersionStages    = 20
	maxStageLabelLength = 256
	maxBatchSecretIDs   = 20
)

// PutSecretValueInput carries the PutSecretValue request parameters
type PutSecretValueInput struct {
	SecretID           string
	ClientRequestToken *string
	SecretString       *string
	SecretBinary       []byte
	VersionStages      []string
}

// PutSecretValueOutput is the PutSecretValue result
type PutSecretValueOutput struct {
	ARN           string
	Name          string
	VersionID     string
	VersionStages []string
}

// PutSecretValue stores a new version of a secret. Supplying a client
// request token makes the call idempotent: replaying it with the same
// payload succeeds without creating a version, replaying with a different
// payload fails with ResourceExistsException.
func (s *Service) PutSecretValue(ctx context.Context, in PutSecretValueInput) (*PutSecretValueOutput, error) {
	if err := validateToken(in.ClientRequestToken); err != nil {
		return nil, err
	}
	if err := validatePayload(in.SecretString, in.SecretBinary); err != nil {
		return nil, err
	}

	stages := in.VersionStages
	if stages == nil {
		stages = []string{models.StageCurrent}
	}
	if len(stages) == 0 || len(stages) > maxVersionStages {
		return nil, awserr.InvalidParameter.WithMessage("VersionStages must contain between 1 and %d labels.", maxVersionStages)
	}
	for _, label := range stages {
		if label == "" || len(label) > maxStageLabelLength {
			return nil, awserr.InvalidParameter.WithMessage("Staging labels must be between 1 and %d characters.", maxStageLabelLength)
		}
	}

	versionID := tokenOrNewVersionID(in.ClientRequestToken)
	now := s.now().UTC()

	var out *PutSecretValueOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.getLiveSecret(ctx, tx, in.SecretID)
		if err != nil {
			return err
		}

		if in.ClientRequestToken != nil {
			existing, err := s.store.GetVersion(ctx, tx, secret.ARN, versionID)
			if err != nil {
				return err
			}
			if existing != nil {
				if !payloadEquals(existing, in.SecretString, in.SecretBinary) {
					return awserr.ResourceExists
				}
				out = &PutSecretValueOutput{
					ARN:           secret.ARN,
					Name:          secret.Name,
					VersionID:     versionID,
					VersionStages: existing.Stages,
				}
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

		for _, label := range stages {
			if label == models.StageCurrent {
				if err := s.rotateCurrentStage(ctx, tx, secret.ARN, versionID, now); err != nil {
					return err
				}
				continue
			}

			// Detach the label from whichever version holds it; versions
			// left with no stages become dangling but are kept
			if err := s.store.RemoveStageFromAll(ctx, tx, secret.ARN, label); err != nil {
				return err
			}
			if err := s.store.AddStage(ctx, tx, secret.ARN, versionID, label, now); err != nil {
				return err
			}
		}

		out = &PutSecretValueOutput{
			ARN:           secret.ARN,
			Name:          secret.Name,
			VersionID:     versionID,
			VersionStages: stages,
		}
		return nil
	})
	if err != nil {
		return nil, s.opError("put secret value", err)
	}
	return out, nil
}

// GetSecretValueInput carries the GetSecretValue request parameters
type GetSecretValueInput struct {
	SecretID     string
	VersionID    *string
	VersionStage *string
}

// SecretValue is the GetSecretValue result
type SecretValue struct {
	ARN           string
	Name          string
	VersionID     string
	SecretString  *string
	SecretBinary  []byte
	VersionStages []string
	CreatedDate   time.Time
}

// GetSecretValue retrieves the value of a version, selected by id, by stage
// (default AWSCURRENT), or by both when they agree
func (s *Service) GetSecretValue(ctx context.Context, in GetSecretValueInput) (*SecretValue, error) {
	var out *SecretValue
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		value, err := s.getSecretValueTx(ctx, tx, in)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	if err != nil {
		return nil, s.opError("get secret value", err)
	}
	return out, nil
}

func (s *Service) getSecretValueTx(ctx context.Context, tx *sql.Tx, in GetSecretValueInput) (*SecretValue, error) {
	secret, err := s.getLiveSecret(ctx, tx, in.SecretID)
	if err != nil {
		return nil, err
	}

	var version *models.SecretVersion
	switch {
	case in.VersionID != nil:
		version, err = s.store.GetVersion(ctx, tx, secret.ARN, *in.VersionID)
		if err != nil {
			return nil, err
		}
		// When both selectors are given they must agree
		if version != nil && in.VersionStage != nil && !version.HasStage(*in.VersionStage) {
			version = nil
		}
	case in.VersionStage != nil:
		version, err = s.store.GetVersionByStage(ctx, tx, secret.ARN, *in.VersionStage)
		if err != nil {
			return nil, err
		}
	default:
		version, err = s.store.GetVersionByStage(ctx, tx, secret.ARN, models.StageCurrent)
		if err != nil {
			return nil, err
		}
	}

	if version == nil {
		return nil, awserr.ResourceNotFound
	}

	// AWS tracks access at UTC-day granularity
	accessedAt := utils.MidnightUTC(s.now())
	if err := s.store.UpdateVersionLastAccessed(ctx, tx, secret.ARN, version.VersionID, accessedAt); err != nil {
		return nil, err
	}

	return &SecretValue{
		ARN:           secret.ARN,
		Name:          secret.Name,
		VersionID:     version.VersionID,
		SecretString:  version.SecretString,
		SecretBinary:  version.SecretBinary,
		VersionStages: version.Stages,
		CreatedDate:   version.CreatedAt,
	}, nil
}

// BatchGetSecretValueInput carries the BatchGetSecretValue request parameters
type BatchGetSecretValueInput struct {
	SecretIDList []string
}

// BatchGetError describes a per-secret failure inside a batch retrieval
type BatchGetError struct {
	SecretID  string
	ErrorCode string
	Message   string
}

// BatchGetSecretValueOutput is the BatchGetSecretValue result
type BatchGetSecretValueOutput struct {
	Values []SecretValue
	Errors []BatchGetError
}

// BatchGetSecretValue retrieves the current value of up to 20 secrets.
// Individual failures are collected rather than failing the batch.
func (s *Service) BatchGetSecretValue(ctx context.Context, in BatchGetSecretValueInput) (*BatchGetSecretValueOutput, error) {
	if len(in.SecretIDList) == 0 || len(in.SecretIDList) > maxBatchSecretIDs {
		return nil, awserr.InvalidParameter.WithMessage("SecretIdList must contain between 1 and %d secret ids.", maxBatchSecretIDs)
	}

	out := &BatchGetSecretValueOutput{}
	for _, secretID := range in.SecretIDList {
		value, err := s.GetSecretValue(ctx, GetSecretValueInput{SecretID: secretID})
		if err != nil {
			apiErr := awserr.From(err)
			out.Errors = append(out.Errors, BatchGetError{
				SecretID:  secretID,
				ErrorCode: apiErr.Type,
				Message:   apiErr.Message,
			})
			continue
		}
		out.Values = append(out.Values, *value)
	}
	return out, nil
}
