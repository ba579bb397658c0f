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

// Package metrics exposes Prometheus instrumentation for the server
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "loker"

var (
	once     sync.Once
	registry *prometheus.Registry

	// RequestsTotal counts dispatched requests by action and HTTP status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency by action
	RequestDurationSeconds *prometheus.HistogramVec

	// SignatureRejectionsTotal counts SigV4 verification failures by error type
	SignatureRejectionsTotal *prometheus.CounterVec

	// SecretsReapedTotal counts secrets hard-deleted by the background reaper
	SecretsReapedTotal prometheus.Counter

	// VersionsPrunedTotal counts excess versions removed by the background reaper
	VersionsPrunedTotal prometheus.Counter

	// Up reports server liveness
	Up prometheus.Gauge
)

// Init builds the metrics registry exactly once and returns it
func Init() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total requests dispatched, by action and status",
		}, []string{"action", "status"})

		RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by action",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"})

		SignatureRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_rejections_total",
			Help:      "SigV4 verification failures by error type",
		}, []string{"error_type"})

		SecretsReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secrets_reaped_total",
			Help:      "Secrets hard-deleted after their recovery window elapsed",
		})

		VersionsPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_pruned_total",
			Help:      "Excess secret versions pruned by the background reaper",
		})

		Up = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Server liveness",
		})
		Up.Set(1)

		registry.MustRegister(
			RequestsTotal,
			RequestDurationSeconds,
			SignatureRejectionsTotal,
			SecretsReapedTotal,
			VersionsPrunedTotal,
			Up,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}
