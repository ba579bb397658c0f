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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
)

func TestPutSecretValue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "v1")

	env.clock.Advance(time.Minute)
	out, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:     "db/pw",
		SecretString: strPtr("v2"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.StageCurrent}, out.VersionStages)

	value, err := env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.Equal(t, out.VersionID, value.VersionID)
	assert.Equal(t, "v2", *value.SecretString)
}

func TestPutSecretValue_IdempotentToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "initial")

	first, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:           "db/pw",
		ClientRequestToken: strPtr(testToken),
		SecretString:       strPtr("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, testToken, first.VersionID)

	// Same token, same payload: success, no new version
	second, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:           "db/pw",
		ClientRequestToken: strPtr(testToken),
		SecretString:       strPtr("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.VersionID, second.VersionID)

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Len(t, desc.VersionIDsToStages, 2, "no third version was created")

	// Same token, different payload: conflict
	_, err = env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:           "db/pw",
		ClientRequestToken: strPtr(testToken),
		SecretString:       strPtr("b"),
	})
	assert.Equal(t, awserr.ResourceExists, err)
}

func TestPutSecretValue_StageRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	created := mustCreate(t, env, "db/pw", "v1")

	env.clock.Advance(time.Minute)
	second, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:     "db/pw",
		SecretString: strPtr("v2"),
	})
	require.NoError(t, err)

	// First put: v1 holds AWSPREVIOUS, v2 holds AWSCURRENT
	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Equal(t, []string{models.StagePrevious}, desc.VersionIDsToStages[created.VersionID])
	assert.Equal(t, []string{models.StageCurrent}, desc.VersionIDsToStages[second.VersionID])

	env.clock.Advance(time.Minute)
	third, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:     "db/pw",
		SecretString: strPtr("v3"),
	})
	require.NoError(t, err)

	// Second put: v1 is dangling but kept, v2 holds AWSPREVIOUS, v3 AWSCURRENT
	desc, err = env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Empty(t, desc.VersionIDsToStages[created.VersionID])
	assert.Equal(t, []string{models.StagePrevious}, desc.VersionIDsToStages[second.VersionID])
	assert.Equal(t, []string{models.StageCurrent}, desc.VersionIDsToStages[third.VersionID])
	assert.Len(t, desc.VersionIDsToStages, 3, "dangling versions are retained")
}

func TestPutSecretValue_CustomStages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	created := mustCreate(t, env, "db/pw", "v1")

	out, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:      "db/pw",
		SecretString:  strPtr("staged"),
		VersionStages: []string{"STAGING"},
	})
	require.NoError(t, err)

	// AWSCURRENT stays on the original version
	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Equal(t, []string{models.StageCurrent}, desc.VersionIDsToStages[created.VersionID])
	assert.Equal(t, []string{"STAGING"}, desc.VersionIDsToStages[out.VersionID])
}

func TestPutSecretValue_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.PutSecretValue(context.Background(), PutSecretValueInput{
		SecretID:     "no/such",
		SecretString: strPtr("x"),
	})
	assert.Equal(t, awserr.ResourceNotFound, err)
}

func TestPutSecretValue_SoftDeletedNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "v1")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)

	_, err = env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:     "db/pw",
		SecretString: strPtr("x"),
	})
	assert.Equal(t, awserr.ResourceNotFound, err)
}

func TestGetSecretValue_Selectors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	created := mustCreate(t, env, "db/pw", "v1")

	env.clock.Advance(time.Minute)
	second, err := env.service.PutSecretValue(ctx, PutSecretValueInput{
		SecretID:     "db/pw",
		SecretString: strPtr("v2"),
	})
	require.NoError(t, err)

	// By version id
	value, err := env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:  "db/pw",
		VersionID: strPtr(created.VersionID),
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", *value.SecretString)

	// By stage
	value, err = env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:     "db/pw",
		VersionStage: strPtr(models.StagePrevious),
	})
	require.NoError(t, err)
	assert.Equal(t, created.VersionID, value.VersionID)

	// Both, agreeing
	value, err = env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:     "db/pw",
		VersionID:    strPtr(second.VersionID),
		VersionStage: strPtr(models.StageCurrent),
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", *value.SecretString)

	// Both, disagreeing
	_, err = env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:     "db/pw",
		VersionID:    strPtr(created.VersionID),
		VersionStage: strPtr(models.StageCurrent),
	})
	assert.Equal(t, awserr.ResourceNotFound, err)

	// Unknown stage
	_, err = env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:     "db/pw",
		VersionStage: strPtr("NOPE"),
	})
	assert.Equal(t, awserr.ResourceNotFound, err)
}

func TestGetSecretValue_LastAccessedTruncatedToUTCDay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "v1")

	_, err := env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	require.NoError(t, err)

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	require.NotNil(t, desc.LastAccessedDate)
	assert.True(t, desc.LastAccessedDate.Equal(time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)))
}

func TestBatchGetSecretValue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "a", "value-a")
	mustCreate(t, env, "b", "value-b")

	out, err := env.service.BatchGetSecretValue(ctx, BatchGetSecretValueInput{
		SecretIDList: []string{"a", "b", "missing"},
	})
	require.NoError(t, err)
	require.Len(t, out.Values, 2)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "missing", out.Errors[0].SecretID)
	assert.Equal(t, "ResourceNotFoundException", out.Errors[0].ErrorCode)
}

func TestBatchGetSecretValue_Limits(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.BatchGetSecretValue(context.Background(), BatchGetSecretValueInput{})
	assert.Equal(t, "InvalidParameterException", awserr.From(err).Type)

	ids := make([]string, 21)
	for i := range ids {
		ids[i] = "x"
	}
	_, err = env.service.BatchGetSecretValue(context.Background(), BatchGetSecretValueInput{SecretIDList: ids})
	assert.Equal(t, "InvalidParameterException", awserr.From(err).Type)
}
