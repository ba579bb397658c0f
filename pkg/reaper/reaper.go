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

// Package reaper runs the fixed-interval background purges: removing secrets
// whose recovery window has elapsed and pruning excess version history.
package reaper

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/metrics"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

// excessVersionAge is how old an unstaged version must be before it is
// eligible for pruning
const excessVersionAge = 24 * time.Hour

// Reaper periodically purges expired state from the store
type Reaper struct {
	store    *storage.Store
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

// New creates a reaper. The clock is injectable for deterministic tests.
func New(store *storage.Store, interval time.Duration, logger *zap.Logger, now func() time.Time) *Reaper {
	if now == nil {
		now = time.Now
	}
	metrics.Init()
	return &Reaper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the purge loop in the background
func (r *Reaper) Start() {
	go r.run()
}

// Stop halts the loop and waits for any in-flight purge to finish
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reaper) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stop:
			r.logger.Info("reaper stopped")
			return
		}
	}
}

// RunOnce performs a single purge pass
func (r *Reaper) RunOnce(ctx context.Context) {
	now := r.now().UTC()

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		reaped, err := r.store.PurgeScheduledSecrets(ctx, tx, now)
		if err != nil {
			return err
		}
		if reaped > 0 {
			metrics.SecretsReapedTotal.Add(float64(reaped))
			r.logger.Info("purged scheduled secret deletions", zap.Int64("count", reaped))
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to purge scheduled secrets", zap.Error(err))
	}

	err = r.store.WithTx(ctx, func(tx *sql.Tx) error {
		pruned, err := r.store.PurgeExcessVersions(ctx, tx, now.Add(-excessVersionAge))
		if err != nil {
			return err
		}
		if pruned > 0 {
			metrics.VersionsPrunedTotal.Add(float64(pruned))
			r.logger.Info("pruned excess secret versions", zap.Int64("count", pruned))
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to prune excess versions", zap.Error(err))
	}
}
