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
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

var arnPattern = regexp.MustCompile(`^arn:aws:secretsmanager:us-east-1:000000000000:secret:[A-Za-z0-9/_+=.@-]+-[A-Za-z0-9]{6}$`)

// testToken is a valid 36-character client request token
const testToken = "12345678-1234-1234-1234-123456789012"

type testEnv struct {
	service *Service
	store   *storage.Store
	clock   *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), "pass", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{now: time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)}
	return &testEnv{
		service: New(store, zap.NewNop(), WithClock(clock.Now)),
		store:   store,
		clock:   clock,
	}
}

func strPtr(value string) *string { return &value }

func int64Ptr(value int64) *int64 { return &value }

func mustCreate(t *testing.T, env *testEnv, name, value string) *CreateSecretOutput {
	t.Helper()

	out, err := env.service.CreateSecret(context.Background(), CreateSecretInput{
		Name:         name,
		SecretString: strPtr(value),
	})
	require.NoError(t, err)
	return out
}

func TestCreateSecret_AndGet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	out, err := env.service.CreateSecret(ctx, CreateSecretInput{
		Name:         "db/pw",
		SecretString: strPtr("hunter2"),
	})
	require.NoError(t, err)
	assert.Regexp(t, arnPattern, out.ARN)
	assert.Equal(t, "db/pw", out.Name)
	assert.NotEmpty(t, out.VersionID)

	value, err := env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.Equal(t, out.ARN, value.ARN)
	require.NotNil(t, value.SecretString)
	assert.Equal(t, "hunter2", *value.SecretString)
	assert.Equal(t, []string{models.StageCurrent}, value.VersionStages)
}

func TestCreateSecret_ClientTokenBecomesVersionID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	out, err := env.service.CreateSecret(ctx, CreateSecretInput{
		Name:               "db/pw",
		ClientRequestToken: strPtr(testToken),
		SecretString:       strPtr("hunter2"),
	})
	require.NoError(t, err)
	assert.Equal(t, testToken, out.VersionID)
}

func TestCreateSecret_DuplicateLiveName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.CreateSecret(ctx, CreateSecretInput{
		Name:         "db/pw",
		SecretString: strPtr("other"),
	})
	assert.Equal(t, awserr.ResourceExists, err)
}

func TestCreateSecret_SoftDeletedNameBlocked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)

	_, err = env.service.CreateSecret(ctx, CreateSecretInput{
		Name:         "db/pw",
		SecretString: strPtr("other"),
	})
	apiErr := awserr.From(err)
	assert.Equal(t, "InvalidRequestException", apiErr.Type)
}

func TestCreateSecret_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name  string
		input CreateSecretInput
	}{
		{"empty name", CreateSecretInput{Name: "", SecretString: strPtr("x")}},
		{"bad characters", CreateSecretInput{Name: "bad name!", SecretString: strPtr("x")}},
		{"no payload", CreateSecretInput{Name: "ok"}},
		{"both payloads", CreateSecretInput{Name: "ok", SecretString: strPtr("x"), SecretBinary: []byte("y")}},
		{"short token", CreateSecretInput{Name: "ok", SecretString: strPtr("x"), ClientRequestToken: strPtr("short")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.service.CreateSecret(ctx, tc.input)
			require.Error(t, err)
			apiErr := awserr.From(err)
			assert.Contains(t, []string{"InvalidParameterException", "InvalidRequestException"}, apiErr.Type)
		})
	}
}

func TestDescribeSecret(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	out := mustCreate(t, env, "db/pw", "hunter2")

	require.NoError(t, env.service.TagResource(ctx, "db/pw", []TagPair{{Key: "env", Value: "test"}}))

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Equal(t, out.ARN, desc.ARN)
	assert.Equal(t, "db/pw", desc.Name)
	assert.Nil(t, desc.DeletedDate)
	require.Len(t, desc.Tags, 1)
	assert.Equal(t, "env", desc.Tags[0].Key)
	require.Contains(t, desc.VersionIDsToStages, out.VersionID)
	assert.Equal(t, []string{models.StageCurrent}, desc.VersionIDsToStages[out.VersionID])
}

func TestDescribeSecret_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.DescribeSecret(context.Background(), "no/such")
	assert.Equal(t, awserr.ResourceNotFound, err)
}

func TestUpdateSecret_DescriptionOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	out, err := env.service.UpdateSecret(ctx, UpdateSecretInput{
		SecretID:    "db/pw",
		Description: strPtr("database password"),
	})
	require.NoError(t, err)
	assert.Nil(t, out.VersionID, "no version is created without secret material")

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	require.NotNil(t, desc.Description)
	assert.Equal(t, "database password", *desc.Description)
	assert.NotNil(t, desc.LastChangedDate)
}

func TestUpdateSecret_NewValueRotatesCurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	created := mustCreate(t, env, "db/pw", "old")

	env.clock.Advance(time.Minute)
	out, err := env.service.UpdateSecret(ctx, UpdateSecretInput{
		SecretID:     "db/pw",
		SecretString: strPtr("new"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.VersionID)

	current, err := env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.Equal(t, "new", *current.SecretString)

	previous, err := env.service.GetSecretValue(ctx, GetSecretValueInput{
		SecretID:     "db/pw",
		VersionStage: strPtr(models.StagePrevious),
	})
	require.NoError(t, err)
	assert.Equal(t, created.VersionID, previous.VersionID)
	assert.Equal(t, "old", *previous.SecretString)
}

func TestUpdateSecret_SoftDeletedFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)

	_, err = env.service.UpdateSecret(ctx, UpdateSecretInput{
		SecretID:     "db/pw",
		SecretString: strPtr("new"),
	})
	assert.Equal(t, "InvalidRequestException", awserr.From(err).Type)
}

func TestDeleteSecret_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	out, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.True(t, out.DeletionDate.Equal(env.clock.Now().AddDate(0, 0, 30)))

	// Hidden from value reads
	_, err = env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	assert.Equal(t, awserr.ResourceNotFound, err)

	// Still describable, reporting the deletion date
	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	require.NotNil(t, desc.DeletedDate)

	// Restore brings reads back and clears the marker
	_, err = env.service.RestoreSecret(ctx, "db/pw")
	require.NoError(t, err)

	value, err := env.service.GetSecretValue(ctx, GetSecretValueInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", *value.SecretString)

	desc, err = env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Nil(t, desc.DeletedDate)
}

func TestDeleteSecret_RecoveryWindowBounds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	for _, days := range []int64{6, 31, 0, -1} {
		_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{
			SecretID:             "db/pw",
			RecoveryWindowInDays: int64Ptr(days),
		})
		assert.Equal(t, "InvalidParameterException", awserr.From(err).Type, "days=%d", days)
	}

	out, err := env.service.DeleteSecret(ctx, DeleteSecretInput{
		SecretID:             "db/pw",
		RecoveryWindowInDays: int64Ptr(7),
	})
	require.NoError(t, err)
	assert.True(t, out.DeletionDate.Equal(env.clock.Now().AddDate(0, 0, 7)))
}

func TestDeleteSecret_ForceWithWindowRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{
		SecretID:                   "db/pw",
		RecoveryWindowInDays:       int64Ptr(7),
		ForceDeleteWithoutRecovery: true,
	})
	assert.Equal(t, "InvalidParameterCombination", awserr.From(err).Type)
}

func TestDeleteSecret_Force(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{
		SecretID:                   "db/pw",
		ForceDeleteWithoutRecovery: true,
	})
	require.NoError(t, err)

	// Hard delete: not even describable, and the name is reusable
	_, err = env.service.DescribeSecret(ctx, "db/pw")
	assert.Equal(t, awserr.ResourceNotFound, err)

	_, err = env.service.CreateSecret(ctx, CreateSecretInput{
		Name:         "db/pw",
		SecretString: strPtr("new"),
	})
	assert.NoError(t, err)
}

func TestDeleteSecret_IdempotentOnSoftDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	first, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	second, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)
	assert.True(t, first.DeletionDate.Equal(second.DeletionDate))
}

func TestRestoreSecret_LiveIsNoOp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	out := mustCreate(t, env, "db/pw", "hunter2")

	restored, err := env.service.RestoreSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Equal(t, out.ARN, restored.ARN)
}

func TestRestoreSecret_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.RestoreSecret(context.Background(), "no/such")
	assert.Equal(t, awserr.ResourceNotFound, err)
}

func TestTagResource_Upsert(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	require.NoError(t, env.service.TagResource(ctx, "db/pw", []TagPair{{Key: "env", Value: "v1"}}))
	require.NoError(t, env.service.TagResource(ctx, "db/pw", []TagPair{{Key: "env", Value: "v2"}}))

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	require.Len(t, desc.Tags, 1, "upsert must not duplicate")
	assert.Equal(t, "v2", desc.Tags[0].Value)
}

func TestTagResource_CaseSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	require.NoError(t, env.service.TagResource(ctx, "db/pw", []TagPair{
		{Key: "Env", Value: "a"},
		{Key: "env", Value: "b"},
	}))

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	assert.Len(t, desc.Tags, 2)
}

func TestUntagResource(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	require.NoError(t, env.service.TagResource(ctx, "db/pw", []TagPair{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
	}))
	require.NoError(t, env.service.UntagResource(ctx, "db/pw", []string{"a", "missing"}))

	desc, err := env.service.DescribeSecret(ctx, "db/pw")
	require.NoError(t, err)
	require.Len(t, desc.Tags, 1)
	assert.Equal(t, "b", desc.Tags[0].Key)
}

func TestTagResource_SoftDeletedFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustCreate(t, env, "db/pw", "hunter2")

	_, err := env.service.DeleteSecret(ctx, DeleteSecretInput{SecretID: "db/pw"})
	require.NoError(t, err)

	err = env.service.TagResource(ctx, "db/pw", []TagPair{{Key: "env", Value: "x"}})
	assert.Equal(t, "InvalidRequestException", awserr.From(err).Type)
}
