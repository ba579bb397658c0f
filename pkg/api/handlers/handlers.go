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

// Package handlers routes Secrets Manager actions. Every request is a POST /
// carrying an X-Amz-Target header of the form secretsmanager.<Action> and a
// json-1.1 body.
package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/api/middleware"
	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/service"
	"github.com/jacobtread/local-aws-secret-manager/pkg/utils"
)

// targetPrefix scopes the X-Amz-Target header to this service
const targetPrefix = "secretsmanager."

// actionFunc handles a single decoded action invocation
type actionFunc func(c *gin.Context, body []byte)

// Dispatcher maps X-Amz-Target actions to their operations
type Dispatcher struct {
	service *service.Service
	logger  *zap.Logger
	actions map[string]actionFunc
}

// NewDispatcher creates the action dispatcher
func NewDispatcher(svc *service.Service, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{service: svc, logger: logger}
	d.actions = map[string]actionFunc{
		"CreateSecret":             d.createSecret,
		"PutSecretValue":           d.putSecretValue,
		"GetSecretValue":           d.getSecretValue,
		"BatchGetSecretValue":      d.batchGetSecretValue,
		"DescribeSecret":           d.describeSecret,
		"UpdateSecret":             d.updateSecret,
		"DeleteSecret":             d.deleteSecret,
		"RestoreSecret":            d.restoreSecret,
		"TagResource":              d.tagResource,
		"UntagResource":            d.untagResource,
		"UpdateSecretVersionStage": d.updateSecretVersionStage,
		"ListSecrets":              d.listSecrets,
		"ListSecretVersionIds":     d.listSecretVersionIds,
		"GetRandomPassword":        d.getRandomPassword,
	}
	return d
}

// RegisterRoutes attaches the single wire endpoint
func (d *Dispatcher) RegisterRoutes(router *gin.Engine) {
	router.POST("/", d.handle)
}

func (d *Dispatcher) handle(c *gin.Context) {
	target := c.GetHeader("X-Amz-Target")

	action, ok := strings.CutPrefix(target, targetPrefix)
	if !ok {
		respondError(c, awserr.InvalidAction)
		return
	}

	handler, ok := d.actions[action]
	if !ok {
		respondError(c, awserr.InvalidAction.WithMessage("The action %s is not valid for this web service.", action))
		return
	}

	c.Set(middleware.ActionKey, action)

	handler(c, middleware.RequestBody(c))
}

func (d *Dispatcher) createSecret(c *gin.Context, body []byte) {
	var req createSecretRequest
	if !bindJSON(c, body, &req) {
		return
	}

	tags := make([]service.TagPair, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tags = append(tags, service.TagPair{Key: tag.Key, Value: tag.Value})
	}

	out, err := d.service.CreateSecret(c.Request.Context(), service.CreateSecretInput{
		Name:               req.Name,
		Description:        req.Description,
		ClientRequestToken: req.ClientRequestToken,
		SecretString:       req.SecretString,
		SecretBinary:       req.SecretBinary,
		Tags:               tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, createSecretResponse{ARN: out.ARN, Name: out.Name, VersionID: out.VersionID})
}

func (d *Dispatcher) putSecretValue(c *gin.Context, body []byte) {
	var req putSecretValueRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.PutSecretValue(c.Request.Context(), service.PutSecretValueInput{
		SecretID:           req.SecretID,
		ClientRequestToken: req.ClientRequestToken,
		SecretString:       req.SecretString,
		SecretBinary:       req.SecretBinary,
		VersionStages:      req.VersionStages,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, putSecretValueResponse{
		ARN:           out.ARN,
		Name:          out.Name,
		VersionID:     out.VersionID,
		VersionStages: out.VersionStages,
	})
}

func (d *Dispatcher) getSecretValue(c *gin.Context, body []byte) {
	var req getSecretValueRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.GetSecretValue(c.Request.Context(), service.GetSecretValueInput{
		SecretID:     req.SecretID,
		VersionID:    req.VersionID,
		VersionStage: req.VersionStage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, secretValueResponse(*out))
}

func (d *Dispatcher) batchGetSecretValue(c *gin.Context, body []byte) {
	var req batchGetSecretValueRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.BatchGetSecretValue(c.Request.Context(), service.BatchGetSecretValueInput{
		SecretIDList: req.SecretIDList,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := batchGetSecretValueResponse{
		SecretValues: make([]getSecretValueResponse, 0, len(out.Values)),
		Errors:       make([]batchGetError, 0, len(out.Errors)),
	}
	for _, value := range out.Values {
		resp.SecretValues = append(resp.SecretValues, secretValueResponse(value))
	}
	for _, batchErr := range out.Errors {
		resp.Errors = append(resp.Errors, batchGetError{
			SecretID:  batchErr.SecretID,
			ErrorCode: batchErr.ErrorCode,
			Message:   batchErr.Message,
		})
	}

	respond(c, resp)
}

func secretValueResponse(value service.SecretValue) getSecretValueResponse {
	return getSecretValueResponse{
		ARN:           value.ARN,
		Name:          value.Name,
		VersionID:     value.VersionID,
		SecretString:  value.SecretString,
		SecretBinary:  value.SecretBinary,
		VersionStages: value.VersionStages,
		CreatedDate:   utils.EpochSeconds(value.CreatedDate),
	}
}

func (d *Dispatcher) describeSecret(c *gin.Context, body []byte) {
	var req describeSecretRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.DescribeSecret(c.Request.Context(), req.SecretID)
	if err != nil {
		respondError(c, err)
		return
	}

	tags := make([]Tag, 0, len(out.Tags))
	for _, tag := range out.Tags {
		tags = append(tags, Tag{Key: tag.Key, Value: tag.Value})
	}

	respond(c, describeSecretResponse{
		ARN:                out.ARN,
		Name:               out.Name,
		Description:        out.Description,
		CreatedDate:        utils.EpochSeconds(out.CreatedDate),
		LastChangedDate:    utils.EpochSecondsPtr(out.LastChangedDate),
		LastAccessedDate:   utils.EpochSecondsPtr(out.LastAccessedDate),
		DeletedDate:        utils.EpochSecondsPtr(out.DeletedDate),
		VersionIDsToStages: out.VersionIDsToStages,
		Tags:               tags,
	})
}

func (d *Dispatcher) updateSecret(c *gin.Context, body []byte) {
	var req updateSecretRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.UpdateSecret(c.Request.Context(), service.UpdateSecretInput{
		SecretID:           req.SecretID,
		ClientRequestToken: req.ClientRequestToken,
		Description:        req.Description,
		SecretString:       req.SecretString,
		SecretBinary:       req.SecretBinary,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, updateSecretResponse{ARN: out.ARN, Name: out.Name, VersionID: out.VersionID})
}

func (d *Dispatcher) deleteSecret(c *gin.Context, body []byte) {
	var req deleteSecretRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.DeleteSecret(c.Request.Context(), service.DeleteSecretInput{
		SecretID:                   req.SecretID,
		RecoveryWindowInDays:       req.RecoveryWindowInDays,
		ForceDeleteWithoutRecovery: req.ForceDeleteWithoutRecovery,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, deleteSecretResponse{
		ARN:          out.ARN,
		Name:         out.Name,
		DeletionDate: utils.EpochSeconds(out.DeletionDate),
	})
}

func (d *Dispatcher) restoreSecret(c *gin.Context, body []byte) {
	var req restoreSecretRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.RestoreSecret(c.Request.Context(), req.SecretID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, restoreSecretResponse{ARN: out.ARN, Name: out.Name})
}

func (d *Dispatcher) tagResource(c *gin.Context, body []byte) {
	var req tagResourceRequest
	if !bindJSON(c, body, &req) {
		return
	}

	tags := make([]service.TagPair, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tags = append(tags, service.TagPair{Key: tag.Key, Value: tag.Value})
	}

	if err := d.service.TagResource(c.Request.Context(), req.SecretID, tags); err != nil {
		respondError(c, err)
		return
	}

	respond(c, struct{}{})
}

func (d *Dispatcher) untagResource(c *gin.Context, body []byte) {
	var req untagResourceRequest
	if !bindJSON(c, body, &req) {
		return
	}

	if err := d.service.UntagResource(c.Request.Context(), req.SecretID, req.TagKeys); err != nil {
		respondError(c, err)
		return
	}

	respond(c, struct{}{})
}

func (d *Dispatcher) updateSecretVersionStage(c *gin.Context, body []byte) {
	var req updateSecretVersionStageRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.UpdateSecretVersionStage(c.Request.Context(), service.UpdateSecretVersionStageInput{
		SecretID:            req.SecretID,
		VersionStage:        req.VersionStage,
		RemoveFromVersionID: req.RemoveFromVersionID,
		MoveToVersionID:     req.MoveToVersionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, updateSecretVersionStageResponse{ARN: out.ARN, Name: out.Name})
}

func (d *Dispatcher) listSecrets(c *gin.Context, body []byte) {
	var req listSecretsRequest
	if !bindJSON(c, body, &req) {
		return
	}

	filters := make([]service.Filter, 0, len(req.Filters))
	for _, filter := range req.Filters {
		filters = append(filters, service.Filter{Key: filter.Key, Values: filter.Values})
	}

	out, err := d.service.ListSecrets(c.Request.Context(), service.ListSecretsInput{
		Filters:                filters,
		IncludePlannedDeletion: req.IncludePlannedDeletion,
		MaxResults:             req.MaxResults,
		NextToken:              req.NextToken,
		SortOrder:              req.SortOrder,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	entries := make([]secretListEntry, 0, len(out.SecretList))
	for _, entry := range out.SecretList {
		tags := make([]Tag, 0, len(entry.Tags))
		for _, tag := range entry.Tags {
			tags = append(tags, Tag{Key: tag.Key, Value: tag.Value})
		}

		entries = append(entries, secretListEntry{
			ARN:                    entry.ARN,
			Name:                   entry.Name,
			Description:            entry.Description,
			CreatedDate:            utils.EpochSeconds(entry.CreatedDate),
			DeletedDate:            utils.EpochSecondsPtr(entry.DeletedDate),
			LastAccessedDate:       utils.EpochSecondsPtr(entry.LastAccessedDate),
			LastChangedDate:        utils.EpochSecondsPtr(entry.LastChangedDate),
			SecretVersionsToStages: entry.SecretVersionsToStages,
			Tags:                   tags,
		})
	}

	respond(c, listSecretsResponse{SecretList: entries, NextToken: out.NextToken})
}

func (d *Dispatcher) listSecretVersionIds(c *gin.Context, body []byte) {
	var req listSecretVersionIdsRequest
	if !bindJSON(c, body, &req) {
		return
	}

	out, err := d.service.ListSecretVersionIds(c.Request.Context(), service.ListSecretVersionIdsInput{
		SecretID:          req.SecretID,
		IncludeDeprecated: req.IncludeDeprecated,
		MaxResults:        req.MaxResults,
		NextToken:         req.NextToken,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	versions := make([]secretVersionEntry, 0, len(out.Versions))
	for _, version := range out.Versions {
		versions = append(versions, secretVersionEntry{
			VersionID:        version.VersionID,
			CreatedDate:      utils.EpochSeconds(version.CreatedDate),
			LastAccessedDate: utils.EpochSecondsPtr(version.LastAccessedDate),
			VersionStages:    version.VersionStages,
		})
	}

	respond(c, listSecretVersionIdsResponse{
		ARN:       out.ARN,
		Name:      out.Name,
		Versions:  versions,
		NextToken: out.NextToken,
	})
}

func (d *Dispatcher) getRandomPassword(c *gin.Context, body []byte) {
	var req getRandomPasswordRequest
	if !bindJSON(c, body, &req) {
		return
	}

	password, err := d.service.GetRandomPassword(service.PasswordOptions{
		ExcludeCharacters:       req.ExcludeCharacters,
		ExcludeLowercase:        req.ExcludeLowercase,
		ExcludeUppercase:        req.ExcludeUppercase,
		ExcludeNumbers:          req.ExcludeNumbers,
		ExcludePunctuation:      req.ExcludePunctuation,
		IncludeSpace:            req.IncludeSpace,
		PasswordLength:          req.PasswordLength,
		RequireEachIncludedType: req.RequireEachIncludedType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, getRandomPasswordResponse{RandomPassword: password})
}

// bindJSON decodes a json-1.1 request body, responding with the malformed
// request envelope on failure
func bindJSON(c *gin.Context, body []byte, target any) bool {
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, target); err != nil {
		respondError(c, awserr.MalformedHTTPRequest)
		return false
	}
	return true
}
