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

// Package service implements the secret model: entity lifecycle, versioning,
// staging and tagging with AWS Secrets Manager semantics. Every operation is
// atomic with respect to the store.
package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

// ARN components for locally minted secrets. The emulator serves a single
// region and a mock account, matching the identifiers the official tooling
// expects from a test endpoint.
const (
	arnRegion  = "us-east-1"
	arnAccount = "000000000000"
)

// arnSuffixLength is the number of random characters AWS appends to a
// secret name inside its ARN
const arnSuffixLength = 6

const arnSuffixCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Secret name constraints
const (
	maxNameLength        = 512
	maxDescriptionLength = 2048
	maxTagKeyLength      = 128
	maxTagValueLength    = 256
	minTokenLength       = 32
	maxTokenLength       = 64
)

// Service implements the secret model operations over the encrypted store
type Service struct {
	store  *storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the time source so date handling is deterministic
// under test
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the secret service
func New(store *storage.Store, logger *zap.Logger, opts ...Option) *Service {
	service := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// mintARN generates a new secret ARN of the form
// arn:aws:secretsmanager:<region>:<account>:secret:<name>-<suffix6>
func mintARN(name string) (string, error) {
	suffix := make([]byte, arnSuffixLength)
	for i := range suffix {
		index, err := rand.Int(rand.Reader, big.NewInt(int64(len(arnSuffixCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate arn suffix: %w", err)
		}
		suffix[i] = arnSuffixCharset[index.Int64()]
	}

	return fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-%s", arnRegion, arnAccount, name, suffix), nil
}

// validateName checks the secret name grammar: 1-512 characters from
// [A-Za-z0-9/_+=.@-]
func validateName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return awserr.InvalidParameter.WithMessage("The secret name must be between 1 and %d characters.", maxNameLength)
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '/', c == '_', c == '+', c == '=', c == '.', c == '@', c == '-':
		default:
			return awserr.InvalidParameter.WithMessage("The secret name contains invalid characters.")
		}
	}
	return nil
}

// validateToken checks a client request token length when one is supplied
func validateToken(token *string) error {
	if token == nil {
		return nil
	}
	if len(*token) < minTokenLength || len(*token) > maxTokenLength {
		return awserr.InvalidParameter.WithMessage("ClientRequestToken must be between %d and %d characters.", minTokenLength, maxTokenLength)
	}
	return nil
}

// validatePayload enforces that exactly one of SecretString / SecretBinary
// is present
func validatePayload(secretString *string, secretBinary []byte) error {
	if secretString != nil && secretBinary != nil {
		return awserr.InvalidParameter.WithMessage("You can't specify both SecretString and SecretBinary.")
	}
	if secretString == nil && secretBinary == nil {
		return awserr.InvalidRequest.WithMessage("You must provide either SecretString or SecretBinary.")
	}
	return nil
}

// tokenOrNewVersionID resolves the version id for a write: the client
// request token when supplied, otherwise a fresh UUIDv4
func tokenOrNewVersionID(token *string) string {
	if token != nil {
		return *token
	}
	return uuid.New().String()
}

// payloadEquals compares a stored version's payload against a request payload
func payloadEquals(version *models.SecretVersion, secretString *string, secretBinary []byte) bool {
	if secretString != nil {
		return version.SecretString != nil && *version.SecretString == *secretString
	}
	if secretBinary != nil {
		if version.SecretBinary == nil || len(version.SecretBinary) != len(secretBinary) {
			return false
		}
		for i := range secretBinary {
			if version.SecretBinary[i] != secretBinary[i] {
				return false
			}
		}
		return true
	}
	return false
}

// getLiveSecret resolves a secret id (name or ARN) to a live secret,
// translating absence and soft-deletion to ResourceNotFoundException
func (s *Service) getLiveSecret(ctx context.Context, tx *sql.Tx, secretID string) (*models.Secret, error) {
	secret, err := s.store.GetSecret(ctx, tx, secretID)
	if err != nil {
		s.logger.Error("failed to get secret", zap.String("secret_id", secretID), zap.Error(err))
		return nil, awserr.InternalFailure
	}
	if secret == nil || secret.Deleted() {
		return nil, awserr.ResourceNotFound
	}
	return secret, nil
}

// rotateCurrentStage moves AWSCURRENT onto versionID, handing AWSPREVIOUS to
// the version that held AWSCURRENT before. This is the sole automatic stage
// transition.
func (s *Service) rotateCurrentStage(ctx context.Context, tx *sql.Tx, arn, versionID string, now time.Time) error {
	previous, err := s.store.GetVersionByStage(ctx, tx, arn, models.StageCurrent)
	if err != nil {
		return err
	}

	if err := s.store.RemoveStageFromAll(ctx, tx, arn, models.StageCurrent); err != nil {
		return err
	}

	if previous != nil && previous.VersionID != versionID {
		if err := s.store.RemoveStageFromAll(ctx, tx, arn, models.StagePrevious); err != nil {
			return err
		}
		if err := s.store.AddStage(ctx, tx, arn, previous.VersionID, models.StagePrevious, now); err != nil {
			return err
		}
	}

	return s.store.AddStage(ctx, tx, arn, versionID, models.StageCurrent, now)
}
