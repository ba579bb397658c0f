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

package reaper

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/models"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

func TestRunOnce_PurgesExpiredSecrets(t *testing.T) {
	ctx := context.Background()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), "pass", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)

	expired := &models.Secret{ARN: "arn:expired", Name: "expired", CreatedAt: now.AddDate(0, 0, -60)}
	require.NoError(t, store.CreateSecret(ctx, nil, expired))
	require.NoError(t, store.ScheduleDelete(ctx, nil, expired.ARN, now.AddDate(0, 0, -40), now.AddDate(0, 0, -10)))

	pending := &models.Secret{ARN: "arn:pending", Name: "pending", CreatedAt: now}
	require.NoError(t, store.CreateSecret(ctx, nil, pending))
	require.NoError(t, store.ScheduleDelete(ctx, nil, pending.ARN, now, now.AddDate(0, 0, 30)))

	reaper := New(store, time.Hour, zap.NewNop(), func() time.Time { return now })
	reaper.RunOnce(ctx)

	gone, err := store.GetSecret(ctx, nil, "expired")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := store.GetSecret(ctx, nil, "pending")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestStartStop(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), "pass", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	reaper := New(store, time.Hour, zap.NewNop(), nil)
	reaper.Start()

	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop")
	}
}
