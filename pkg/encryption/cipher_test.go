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

package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	k1 := DeriveKey("correct horse battery staple", salt)
	k2 := DeriveKey("correct horse battery staple", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	k3 := DeriveKey("wrong passphrase", salt)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveKey_SaltChangesKey(t *testing.T) {
	s1, err := NewSalt()
	require.NoError(t, err)
	s2, err := NewSalt()
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)

	assert.NotEqual(t, DeriveKey("pass", s1), DeriveKey("pass", s2))
}

func TestCipher_RoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	c, err := NewCipher(DeriveKey("pass", salt))
	require.NoError(t, err)

	plaintext := []byte("hunter2")
	sealed, err := c.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestCipher_WrongKeyFails(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	c1, err := NewCipher(DeriveKey("pass", salt))
	require.NoError(t, err)
	c2, err := NewCipher(DeriveKey("other", salt))
	require.NoError(t, err)

	sealed, err := c1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestCipher_TamperedPayloadFails(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	c, err := NewCipher(DeriveKey("pass", salt))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = c.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestCipher_ShortPayload(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	c, err := NewCipher(DeriveKey("pass", salt))
	require.NoError(t, err)

	_, err = c.Open([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestNewCipher_InvalidKeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}
