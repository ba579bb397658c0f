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

package sigv4

import (
	"crypto/hmac"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
	"github.com/jacobtread/local-aws-secret-manager/pkg/utils"
)

// MaxClockSkew is the allowed difference between X-Amz-Date and server time
const MaxClockSkew = 15 * time.Minute

// unsignedPayload is the sentinel AWS clients may send instead of a body
// hash; this service does not accept it
const unsignedPayload = "UNSIGNED-PAYLOAD"

// Authorization is the parsed form of an AWS4-HMAC-SHA256 Authorization header
type Authorization struct {
	AccessKeyID   string
	Date          string
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

// ParseAuthorization parses a header of the form
//
//	AWS4-HMAC-SHA256 Credential=<akid>/<date>/<region>/<service>/aws4_request, SignedHeaders=<h1;h2>, Signature=<hex>
func ParseAuthorization(header string) (*Authorization, error) {
	rest, ok := strings.CutPrefix(header, Algorithm+" ")
	if !ok {
		return nil, awserr.InvalidSignature
	}

	auth := &Authorization{}
	var credential string

	for _, part := range strings.Split(rest, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return nil, awserr.InvalidSignature
		}

		switch key {
		case "Credential":
			credential = value
		case "SignedHeaders":
			auth.SignedHeaders = strings.Split(value, ";")
		case "Signature":
			auth.Signature = value
		default:
			return nil, awserr.InvalidSignature
		}
	}

	if credential == "" || len(auth.SignedHeaders) == 0 || auth.Signature == "" {
		return nil, awserr.InvalidSignature
	}

	scope := strings.Split(credential, "/")
	if len(scope) != 5 || scope[4] != terminationString {
		return nil, awserr.InvalidSignature
	}

	auth.AccessKeyID = scope[0]
	auth.Date = scope[1]
	auth.Region = scope[2]
	auth.Service = scope[3]

	for _, name := range auth.SignedHeaders {
		if name == "" || name != strings.ToLower(name) {
			return nil, awserr.InvalidSignature
		}
	}

	return auth, nil
}

// Verifier validates inbound request signatures against the configured credential
type Verifier struct {
	credential Credential
	now        func() time.Time
}

// NewVerifier creates a verifier for the given credential. The clock is
// injectable so skew rejection is deterministic under test.
func NewVerifier(credential Credential, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{credential: credential, now: now}
}

// Verify recomputes the v4 signature for the request and compares it in
// constant time against the one presented. It returns an AWS-shaped error on
// any failure; state must never be touched before this succeeds.
func (v *Verifier) Verify(req *Request) error {
	auth, err := ParseAuthorization(req.Header.Get("Authorization"))
	if err != nil {
		return err
	}

	// The region is accepted as given; AWS validates only the service here
	if auth.Service != ServiceName {
		return awserr.InvalidSignature
	}

	if auth.AccessKeyID != v.credential.AccessKeyID {
		return awserr.InvalidClientTokenID
	}

	amzDate := req.Header.Get(AmzDateHeader)
	if amzDate == "" {
		return awserr.SignatureDoesNotMatch
	}

	requestTime, err := utils.ParseAmzDate(amzDate)
	if err != nil {
		return awserr.SignatureDoesNotMatch
	}

	skew := v.now().UTC().Sub(requestTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return awserr.SignatureDoesNotMatch
	}

	// The credential scope date must agree with the request timestamp
	if auth.Date != amzDate[:8] {
		return awserr.SignatureDoesNotMatch
	}

	if !containsHeader(auth.SignedHeaders, "host") || !containsHeader(auth.SignedHeaders, "x-amz-date") {
		return awserr.InvalidSignature
	}

	payloadHash := req.Header.Get(ContentSHA256Header)
	if payloadHash == "" || strings.EqualFold(payloadHash, unsignedPayload) {
		return awserr.SignatureDoesNotMatch
	}

	canonicalRequest := CanonicalRequest(req, auth.SignedHeaders, payloadHash)
	stringToSign := StringToSign(amzDate, CredentialScope(auth.Date, auth.Region, auth.Service), canonicalRequest)
	signingKey := SigningKey(v.credential.SecretAccessKey, auth.Date, auth.Region, auth.Service)

	expected := hmacSHA256(signingKey, []byte(stringToSign))

	presented, err := hex.DecodeString(auth.Signature)
	if err != nil {
		return awserr.SignatureDoesNotMatch
	}

	if !hmac.Equal(expected, presented) {
		return awserr.SignatureDoesNotMatch
	}

	// The payload hash is signed material; it must also describe the body
	// that actually arrived
	if !hmac.Equal([]byte(payloadHash), []byte(HashHex(req.Body))) {
		return awserr.SignatureDoesNotMatch
	}

	return nil
}

func containsHeader(headers []string, name string) bool {
	for _, header := range headers {
		if header == name {
			return true
		}
	}
	return false
}
