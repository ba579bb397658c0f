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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURIEncode(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		encodeSlash bool
		expected    string
	}{
		{"unreserved", "AZaz09-._~", true, "AZaz09-._~"},
		{"space", "a b", true, "a%20b"},
		{"slash encoded", "a/b", true, "a%2Fb"},
		{"slash preserved", "a/b", false, "a/b"},
		{"uppercase hex", "a+b", true, "a%2Bb"},
		{"utf8", "é", true, "%C3%A9"},
		{"equals", "k=v", true, "k%3Dv"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, uriEncode(tc.input, tc.encodeSlash))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"/foo/bar", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
		{"/foo/../bar", "/bar"},
		{"/foo//bar", "/foo/bar"},
		{"/../..", "/"},
		{"/foo/bar/", "/foo/bar/"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, normalizePath(tc.input), "input %q", tc.input)
	}
}

func TestCanonicalQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"single", "a=1", "a=1"},
		{"sorted by key", "b=2&a=1", "a=1&b=2"},
		{"sorted by value", "a=2&a=1", "a=1&a=2"},
		{"empty value", "a", "a="},
		{"encoding", "key=a b", "key=a%20b"},
		{"pre-encoded input not double encoded", "key=a%20b", "key=a%20b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, canonicalQuery(tc.input))
		})
	}
}

func TestTrimHeaderValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "value", "value"},
		{"surrounding whitespace", "  value  ", "value"},
		{"collapse runs", "a   b", "a b"},
		{"tabs collapse", "a \t b", "a b"},
		// Runs inside double quotes must survive untouched
		{"quoted preserved", `a "b   c" d`, `a "b   c" d`},
		{"collapse outside quotes only", `x   "y   z"   w`, `x "y   z" w`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, trimHeaderValue(tc.input))
		})
	}
}
