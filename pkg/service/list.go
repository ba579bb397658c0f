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
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

// Listing constraints
const (
	defaultMaxResults = 100
	maxMaxResults     = 100
	maxFilterValues   = 10
)

var validFilterKeys = map[string]bool{
	"name":        true,
	"description": true,
	"tag-key":     true,
	"tag-value":   true,
	"all":         true,
}

// pageToken is the opaque NextToken payload: a page index bound to its page
// size so a token cannot be replayed against a different MaxResults
type pageToken struct {
	PageIndex int64
	PageSize  int64
}

func (t pageToken) String() string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("v1:%d:%d", t.PageIndex, t.PageSize)))
}

func parsePageToken(value string) (pageToken, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return pageToken{}, awserr.InvalidParameter.WithMessage("The NextToken value is invalid.")
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 || parts[0] != "v1" {
		return pageToken{}, awserr.InvalidParameter.WithMessage("The NextToken value is invalid.")
	}

	index, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || index < 0 {
		return pageToken{}, awserr.InvalidParameter.WithMessage("The NextToken value is invalid.")
	}
	size, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || size <= 0 {
		return pageToken{}, awserr.InvalidParameter.WithMessage("The NextToken value is invalid.")
	}

	return pageToken{PageIndex: index, PageSize: size}, nil
}

// Filter narrows a secret listing
type Filter struct {
	Key    string
	Values []string
}

// ListSecretsInput carries the ListSecrets request parameters
type ListSecretsInput struct {
	Filters                []Filter
	IncludePlannedDeletion bool
	MaxResults             *int64
	NextToken              *string
	SortOrder              *string
}

// SecretListEntry is one secret's metadata in a listing
type SecretListEntry struct {
	ARN                    string
	Name                   string
	Description            *string
	CreatedDate            time.Time
	DeletedDate            *time.Time
	LastAccessedDate       *time.Time
	LastChangedDate        *time.Time
	SecretVersionsToStages map[string][]string
	Tags                   []models.SecretTag
}

// ListSecretsOutput is the ListSecrets result
type ListSecretsOutput struct {
	SecretList []SecretListEntry
	NextToken  *string
}

// ListSecrets returns a page of secret metadata, optionally filtered.
// Soft-deleted secrets are hidden unless IncludePlannedDeletion is set.
func (s *Service) ListSecrets(ctx context.Context, in ListSecretsInput) (*ListSecretsOutput, error) {
	maxResults := int64(defaultMaxResults)
	if in.MaxResults != nil {
		maxResults = *in.MaxResults
		if maxResults < 1 || maxResults > maxMaxResults {
			return nil, awserr.InvalidParameter.WithMessage("MaxResults must be between 1 and %d.", maxMaxResults)
		}
	}

	token := pageToken{PageIndex: 0, PageSize: maxResults}
	if in.NextToken != nil {
		parsed, err := parsePageToken(*in.NextToken)
		if err != nil {
			return nil, err
		}
		token = parsed
	}
	token.PageSize = maxResults

	ascending := false
	if in.SortOrder != nil {
		switch *in.SortOrder {
		case "asc":
			ascending = true
		case "desc":
		default:
			return nil, awserr.InvalidParameter.WithMessage("SortOrder must be either asc or desc.")
		}
	}

	filters := make([]storage.SecretFilter, 0, len(in.Filters))
	for _, filter := range in.Filters {
		if !validFilterKeys[filter.Key] {
			return nil, awserr.InvalidParameter.WithMessage("The filter key %s is not valid.", filter.Key)
		}
		if len(filter.Values) == 0 || len(filter.Values) > maxFilterValues {
			return nil, awserr.InvalidParameter.WithMessage("Filters must have between 1 and %d values.", maxFilterValues)
		}
		filters = append(filters, storage.SecretFilter{Key: filter.Key, Values: filter.Values})
	}

	query := storage.ListSecretsQuery{
		Filters:        filters,
		IncludeDeleted: in.IncludePlannedDeletion,
		Limit:          token.PageSize,
		Offset:         token.PageIndex * token.PageSize,
		Ascending:      ascending,
	}

	var out *ListSecretsOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secrets, err := s.store.ListSecrets(ctx, tx, query)
		if err != nil {
			return err
		}
		count, err := s.store.CountSecrets(ctx, tx, query)
		if err != nil {
			return err
		}

		entries := make([]SecretListEntry, 0, len(secrets))
		for _, secret := range secrets {
			tags, err := s.store.ListTags(ctx, tx, secret.ARN)
			if err != nil {
				return err
			}
			stages, err := s.store.VersionStages(ctx, tx, secret.ARN)
			if err != nil {
				return err
			}
			versions, err := s.store.ListVersions(ctx, tx, secret.ARN, true, int64(len(stages))+1, 0)
			if err != nil {
				return err
			}

			entries = append(entries, SecretListEntry{
				ARN:                    secret.ARN,
				Name:                   secret.Name,
				Description:            secret.Description,
				CreatedDate:            secret.CreatedAt,
				DeletedDate:            secret.DeletedAt,
				LastAccessedDate:       lastAccessedDate(versions),
				LastChangedDate:        lastChangedDate(secret, versions, tags),
				SecretVersionsToStages: stages,
				Tags:                   tags,
			})
		}

		out = &ListSecretsOutput{SecretList: entries}
		if count > query.Offset+query.Limit {
			next := pageToken{PageIndex: token.PageIndex + 1, PageSize: token.PageSize}.String()
			out.NextToken = &next
		}
		return nil
	})
	if err != nil {
		return nil, s.opError("list secrets", err)
	}
	return out, nil
}

// ListSecretVersionIdsInput carries the ListSecretVersionIds request
// parameters
type ListSecretVersionIdsInput struct {
	SecretID          string
	IncludeDeprecated bool
	MaxResults        *int64
	NextToken         *string
}

// SecretVersionEntry is one version's metadata in a listing
type SecretVersionEntry struct {
	VersionID        string
	CreatedDate      time.Time
	LastAccessedDate *time.Time
	VersionStages    []string
}

// ListSecretVersionIdsOutput is the ListSecretVersionIds result
type ListSecretVersionIdsOutput struct {
	ARN       string
	Name      string
	Versions  []SecretVersionEntry
	NextToken *string
}

// ListSecretVersionIds returns a page of a secret's versions, newest first.
// Versions holding no staging labels are deprecated and hidden unless
// requested.
func (s *Service) ListSecretVersionIds(ctx context.Context, in ListSecretVersionIdsInput) (*ListSecretVersionIdsOutput, error) {
	maxResults := int64(defaultMaxResults)
	if in.MaxResults != nil {
		maxResults = *in.MaxResults
		if maxResults < 1 || maxResults > maxMaxResults {
			return nil, awserr.InvalidParameter.WithMessage("MaxResults must be between 1 and %d.", maxMaxResults)
		}
	}

	token := pageToken{PageIndex: 0, PageSize: maxResults}
	if in.NextToken != nil {
		parsed, err := parsePageToken(*in.NextToken)
		if err != nil {
			return nil, err
		}
		token = parsed
	}
	token.PageSize = maxResults

	var out *ListSecretVersionIdsOutput
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		secret, err := s.store.GetSecret(ctx, tx, in.SecretID)
		if err != nil {
			return err
		}
		if secret == nil {
			return awserr.ResourceNotFound
		}

		offset := token.PageIndex * token.PageSize
		versions, err := s.store.ListVersions(ctx, tx, secret.ARN, in.IncludeDeprecated, token.PageSize, offset)
		if err != nil {
			return err
		}
		count, err := s.store.CountVersions(ctx, tx, secret.ARN, in.IncludeDeprecated)
		if err != nil {
			return err
		}

		entries := make([]SecretVersionEntry, 0, len(versions))
		for _, version := range versions {
			entries = append(entries, SecretVersionEntry{
				VersionID:        version.VersionID,
				CreatedDate:      version.CreatedAt,
				LastAccessedDate: version.LastAccessedAt,
				VersionStages:    version.Stages,
			})
		}

		out = &ListSecretVersionIdsOutput{
			ARN:      secret.ARN,
			Name:     secret.Name,
			Versions: entries,
		}
		if count > offset+token.PageSize {
			next := pageToken{PageIndex: token.PageIndex + 1, PageSize: token.PageSize}.String()
			out.NextToken = &next
		}
		return nil
	})
	if err != nil {
		return nil, s.opError("list secret version ids", err)
	}
	return out, nil
}
