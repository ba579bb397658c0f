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

// Package awserr models the AWS error envelope rendered to clients as
// {"__type": "<code>", "message": "<text>"} with an x-amzn-errortype header.
package awserr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an AWS-shaped API error
type Error struct {
	// Type is the AWS error code carried in __type and x-amzn-errortype
	Type string `json:"__type"`
	// Message is the human readable description
	Message string `json:"message"`
	// Status is the HTTP status code; not serialized into the body
	Status int `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// WithMessage derives a copy of the error with a different message
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Type: e.Type, Message: fmt.Sprintf(format, args...), Status: e.Status}
}

var (
	InvalidSignature = &Error{
		Type:    "InvalidSignatureException",
		Message: "The request signature is missing or malformed.",
		Status:  http.StatusForbidden,
	}

	SignatureDoesNotMatch = &Error{
		Type:    "SignatureDoesNotMatch",
		Message: "The request signature we calculated does not match the signature you provided. Check your AWS Secret Access Key and signing method.",
		Status:  http.StatusForbidden,
	}

	InvalidClientTokenID = &Error{
		Type:    "InvalidClientTokenId",
		Message: "The security token included in the request is invalid.",
		Status:  http.StatusForbidden,
	}

	ResourceNotFound = &Error{
		Type:    "ResourceNotFoundException",
		Message: "Secrets Manager can't find the resource that you asked for.",
		Status:  http.StatusBadRequest,
	}

	ResourceExists = &Error{
		Type:    "ResourceExistsException",
		Message: "A resource with the ID you requested already exists.",
		Status:  http.StatusBadRequest,
	}

	InvalidRequest = &Error{
		Type:    "InvalidRequestException",
		Message: "A parameter value is not valid for the current state of the resource.",
		Status:  http.StatusBadRequest,
	}

	InvalidParameter = &Error{
		Type:    "InvalidParameterException",
		Message: "A parameter value is not valid.",
		Status:  http.StatusBadRequest,
	}

	InvalidParameterCombination = &Error{
		Type:    "InvalidParameterCombination",
		Message: "The parameter combination is not valid.",
		Status:  http.StatusBadRequest,
	}

	MalformedHTTPRequest = &Error{
		Type:    "MalformedHTTPRequestException",
		Message: "The request body is not well-formed.",
		Status:  http.StatusBadRequest,
	}

	InvalidAction = &Error{
		Type:    "InvalidAction",
		Message: "The requested action is not valid for this web service.",
		Status:  http.StatusBadRequest,
	}

	InternalFailure = &Error{
		Type:    "InternalFailure",
		Message: "An error occurred on the server side.",
		Status:  http.StatusInternalServerError,
	}
)

// From converts any error into an *Error, mapping unrecognized errors to
// InternalFailure so no internal detail crosses the wire
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalFailure
}
