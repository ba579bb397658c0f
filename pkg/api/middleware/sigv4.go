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
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/sigv4"
)

const (
	// BodyKey is the Gin context key holding the buffered request body
	BodyKey = "raw_body"

	// ActionKey is the Gin context key holding the dispatched action name
	ActionKey = "action"
)

// SigV4Middleware verifies the AWS Signature Version 4 on every request
// before any state is touched. The request body is buffered here so the
// signature covers exactly the bytes the handlers will decode.
func SigV4Middleware(verifier *sigv4.Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithError(c, awserr.MalformedHTTPRequest)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(BodyKey, body)

		request := &sigv4.Request{
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			RawQuery: c.Request.URL.RawQuery,
			Host:     c.Request.Host,
			Header:   c.Request.Header,
			Body:     body,
		}

		if err := verifier.Verify(request); err != nil {
			apiErr := awserr.From(err)
			GetLogger(c, logger).Debug("request signature rejected",
				zap.String("error_type", apiErr.Type),
				zap.String("client_ip", c.ClientIP()))
			abortWithError(c, apiErr)
			return
		}

		c.Next()
	}
}

// RequestBody returns the buffered request body for the current request
func RequestBody(c *gin.Context) []byte {
	if value, exists := c.Get(BodyKey); exists {
		if body, ok := value.([]byte); ok {
			return body
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	return body
}

// abortWithError writes the AWS error envelope and stops the chain
func abortWithError(c *gin.Context, err *awserr.Error) {
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("x-amzn-errortype", err.Type)
	c.Data(err.Status, "application/x-amz-json-1.1", data)
	c.Abort()
}
