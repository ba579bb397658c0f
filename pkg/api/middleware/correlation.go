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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CorrelationIDHeader is the HTTP header name for correlation ID
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the Gin context key for correlation ID
	CorrelationIDKey = "correlation_id"
	// LoggerKey is the Gin context key for the correlation-aware logger
	LoggerKey = "logger"
)

// CorrelationIDMiddleware tracks a correlation ID per request: an incoming
// X-Correlation-ID header is honored, otherwise a new UUID is generated. The
// ID is echoed in the response and attached to a request-scoped logger.
func CorrelationIDMiddleware(baseLogger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)

		logger := baseLogger.With(zap.String("correlation_id", correlationID))
		c.Set(LoggerKey, logger)

		c.Header(CorrelationIDHeader, correlationID)

		c.Next()
	}
}

// GetLogger retrieves the correlation-aware logger from the Gin context,
// falling back to the provided logger
func GetLogger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if value, exists := c.Get(LoggerKey); exists {
		if logger, ok := value.(*zap.Logger); ok {
			return logger
		}
	}
	return fallback
}
