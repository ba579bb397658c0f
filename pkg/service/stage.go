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

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
)

// UpdateSecretVersionStageInput carries the UpdateSecretVersionStage request
// parameters
type UpdateSecretVersionStageInput struct {
	SecretID            string
	VersionStage        string
	RemoveFromVersionID *string
	MoveToVersionID     *string
}

// UpdateSecretVersionStageOutput is the UpdateSecretVersionStage result
type UpdateSecretVersionStageOutput struct {
	ARN  string
	Name string
}

// UpdateSecretVersionStage moves a staging label between versions or removes
// it. Moving AWSCURRENT triggers the automatic AWSPREVIOUS handoff.
func (s *Service) UpdateSecretVersionStage(ctx context.Context, in UpdateSecretVersionStageInput) (*UpdateSecretVersionStageOutput, error) {
	if in.VersionStage == "" || len(in.VersionStage) > maxStageLabelLength {
		return nil, awserr.InvalidParameter.WithMessage("Staging labels must be between 1 and %d characters.", maxStageLabelLength)
	}
	if in.RemoveFromVersionID == nil && in.MoveToVersionID == nil {
		return nil, awserr.InvalidParameter.WithMessage("You must provide MoveToVersionId and/or RemoveFromVersionId.")
	}
	if in.VersionStage == models.StageCurrent && in.MoveToVersionID == nil {
		return nil, awserr.InvalidParameter.WithMessage("You can't remove the AWSCURRENT staging label without moving it to another version.")
	}

	now := s.now().UTC()

	var out *UpdateSecretVersionStageOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.getLiveSecret(ctx, tx, in.SecretID)
		if err != nil {
			return err
		}
		out = &UpdateSecretVersionStageOutput{ARN: secret.ARN, Name: secret.Name}

		if in.RemoveFromVersionID != nil {
			version, err := s.store.GetVersion(ctx, tx, secret.ARN, *in.RemoveFromVersionID)
			if err != nil {
				return err
			}
			if version == nil {
				return awserr.ResourceNotFound
			}
			if !version.HasStage(in.VersionStage) {
				return awserr.InvalidParameter.WithMessage(
					"The staging label %s isn't attached to version %s.", in.VersionStage, *in.RemoveFromVersionID)
			}
		}

		if in.MoveToVersionID == nil {
			return s.store.RemoveStage(ctx, tx, secret.ARN, *in.RemoveFromVersionID, in.VersionStage)
		}

		target, err := s.store.GetVersion(ctx, tx, secret.ARN, *in.MoveToVersionID)
		if err != nil {
			return err
		}
		if target == nil {
			return awserr.ResourceNotFound
		}

		// Already where it should be
		if target.HasStage(in.VersionStage) {
			return nil
		}

		if in.VersionStage == models.StageCurrent {
			return s.rotateCurrentStage(ctx, tx, secret.ARN, target.VersionID, now)
		}

		if err := s.store.RemoveStageFromAll(ctx, tx, secret.ARN, in.VersionStage); err != nil {
			return err
		}
		return s.store.AddStage(ctx, tx, secret.ARN, target.VersionID, in.VersionStage, now)
	})
	if err != nil {
		return nil, s.opError("update secret version stage", err)
	}
	return out, nil
}
