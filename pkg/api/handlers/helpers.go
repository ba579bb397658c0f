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

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
)

// contentTypeAmzJSON is the json-1.1 protocol content type
const contentTypeAmzJSON = "application/x-amz-json-1.1"

// respond writes a success response in the json-1.1 envelope
func respond(c *gin.Context, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		respondError(c, awserr.InternalFailure)
		return
	}
	c.Data(http.StatusOK, contentTypeAmzJSON, data)
}

// respondError writes an AWS error envelope:
// {"__type": "<code>", "message": "<text>"} plus the x-amzn-errortype header
func respondError(c *gin.Context, err error) {
	apiErr := awserr.From(err)

	data, marshalErr := json.Marshal(apiErr)
	if marshalErr != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("x-amzn-errortype", apiErr.Type)
	c.Data(apiErr.Status, contentTypeAmzJSON, data)
	c.Abort()
}
