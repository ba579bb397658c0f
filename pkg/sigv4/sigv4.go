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

// Package sigv4 implements AWS Signature Version 4 request canonicalization,
// signing, and verification for the Secrets Manager wire protocol.
//
// https://docs.aws.amazon.com/IAM/latest/UserGuide/reference_sigv-create-signed-request.html
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// Algorithm is the signing algorithm identifier carried in the Authorization header
	Algorithm = "AWS4-HMAC-SHA256"

	// ServiceName is the only service this server signs for
	ServiceName = "secretsmanager"

	// terminationString closes every credential scope
	terminationString = "aws4_request"

	// AmzDateHeader carries the request timestamp in ISO-8601 basic format
	AmzDateHeader = "X-Amz-Date"

	// ContentSHA256Header carries the hex SHA-256 of the request payload
	ContentSHA256Header = "X-Amz-Content-Sha256"
)

// Credential is the single access key pair the server accepts
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
}

// HashHex computes the hex encoded SHA-256 digest of a payload
func HashHex(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// hmacSHA256 computes a HMAC-SHA256 over msg using key
func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// SigningKey derives the request signing key through the chained HMAC cascade
// defined by the v4 specification:
//
//	kDate = HMAC("AWS4"+secret, date)
//	kRegion = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
func SigningKey(secretAccessKey, dateYYYYMMDD, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), []byte(dateYYYYMMDD))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(terminationString))
}

// CredentialScope formats the date/region/service/aws4_request scope tuple
func CredentialScope(dateYYYYMMDD, region, service string) string {
	return dateYYYYMMDD + "/" + region + "/" + service + "/" + terminationString
}

// StringToSign builds the final signing input from the request timestamp,
// credential scope and the canonical request
func StringToSign(amzDate, credentialScope, canonicalRequest string) string {
	return Algorithm + "\n" + amzDate + "\n" + credentialScope + "\n" + HashHex([]byte(canonicalRequest))
}

// Sign computes the hex encoded request signature
func Sign(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}
