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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// NonceSize is the size of the nonce for AES-GCM (12 bytes is standard)
	NonceSize = 12

	// KeySize is the AES-256 key length in bytes
	KeySize = 32

	// SaltSize is the length of the random KDF salt persisted alongside the database
	SaltSize = 16
)

// Argon2id parameters for passphrase key derivation
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrDecryptFailed indicates the ciphertext could not be opened with the
// derived key, either because the payload is corrupt or the passphrase is wrong
var ErrDecryptFailed = errors.New("decryption failed")

// DeriveKey derives an AES-256 key from an operator passphrase using Argon2id
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// NewSalt generates a random KDF salt
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Cipher encrypts and decrypts byte payloads using AES-256-GCM
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a cipher from a derived key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: expected %d bytes, got %d bytes", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext with a random nonce. The returned payload is
// nonce || encrypted data || auth tag.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal and verifies its authentication tag
func (c *Cipher) Open(payload []byte) ([]byte, error) {
	if len(payload) < NonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(payload))
	}

	nonce := payload[:NonceSize]
	ciphertext := payload[NonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}
