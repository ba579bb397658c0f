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
)

// TagResource upserts tags on a live secret. Keys are case-sensitive;
// re-tagging an existing key replaces its value.
func (s *Service) TagResource(ctx context.Context, secretID string, tags []TagPair) error {
	if len(tags) == 0 {
		return awserr.InvalidParameter.WithMessage("You must provide at least one tag.")
	}
	for _, tag := range tags {
		if err := validateTag(tag); err != nil {
			return err
		}
	}

	now := s.now().UTC()

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, secretID)
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

		for _, tag := range tags {
			if err := s.store.UpsertTag(ctx, tx, secret.ARN, tag.Key, tag.Value, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.opError("tag resource", err)
	}
	return nil
}

// UntagResource removes tags from a live secret by key. Removing a key that
// is not present is not an error.
func (s *Service) UntagResource(ctx context.Context, secretID string, tagKeys []string) error {
	if len(tagKeys) == 0 {
		return awserr.InvalidParameter.WithMessage("You must provide at least one tag key.")
	}
	for _, key := range tagKeys {
		if key == "" || len(key) > maxTagKeyLength {
			return awserr.InvalidParameter.WithMessage("Tag keys must be between 1 and %d characters.", maxTagKeyLength)
		}
	}

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, secretID)
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

		for _, key := range tagKeys {
			if err := s.store.DeleteTag(ctx, tx, secret.ARN, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.opError("untag resource", err)
	}
	return nil
}
