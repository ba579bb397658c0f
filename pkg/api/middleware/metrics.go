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

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jacobtread/local-aws-secret-manager/pkg/metrics"
)

// MetricsMiddleware records request counts and latency per action
func MetricsMiddleware() gin.HandlerFunc {
	metrics.Init()

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		action := c.GetString(ActionKey)
		if action == "" {
			action = "unknown"
		}
		status := c.Writer.Status()

		metrics.RequestsTotal.WithLabelValues(action, strconv.Itoa(status)).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(action).Observe(time.Since(start).Seconds())

		if status == http.StatusForbidden {
			metrics.SignatureRejectionsTotal.WithLabelValues(c.Writer.Header().Get("x-amzn-errortype")).Inc()
		}
	}
}
