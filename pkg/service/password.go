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

package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/jacobtread/local-aws-secret-manager/pkg/awserr"
)

// Password generation character classes
const (
	lowercaseChars   = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberChars      = "0123456789"
	punctuationChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

const (
	defaultPasswordLength = 32
	maxPasswordLength     = 4096
)

// PasswordOptions controls GetRandomPassword generation
type PasswordOptions struct {
	ExcludeCharacters       string
	ExcludeLowercase        bool
	ExcludeUppercase        bool
	ExcludeNumbers          bool
	ExcludePunctuation      bool
	IncludeSpace            bool
	PasswordLength          *int64
	RequireEachIncludedType bool
}

// GetRandomPassword generates a cryptographically random password from the
// requested character classes
func (s *Service) GetRandomPassword(opts PasswordOptions) (string, error) {
	length := int64(defaultPasswordLength)
	if opts.PasswordLength != nil {
		length = *opts.PasswordLength
	}
	if length < 1 || length > maxPasswordLength {
		return "", awserr.InvalidParameter.WithMessage("PasswordLength must be between 1 and %d.", maxPasswordLength)
	}

	// Collect the character sets that remain after exclusions
	filterAllowed := func(set string) []byte {
		allowed := make([]byte, 0, len(set))
		for i := 0; i < len(set); i++ {
			if !strings.ContainsRune(opts.ExcludeCharacters, rune(set[i])) {
				allowed = append(allowed, set[i])
			}
		}
		return allowed
	}

	var typeSets [][]byte
	if !opts.ExcludeLowercase {
		typeSets = append(typeSets, filterAllowed(lowercaseChars))
	}
	if !opts.ExcludeUppercase {
		typeSets = append(typeSets, filterAllowed(uppercaseChars))
	}
	if !opts.ExcludeNumbers {
		typeSets = append(typeSets, filterAllowed(numberChars))
	}
	if !opts.ExcludePunctuation {
		typeSets = append(typeSets, filterAllowed(punctuationChars))
	}

	var allowed []byte
	for _, set := range typeSets {
		allowed = append(allowed, set...)
	}
	if opts.IncludeSpace && !strings.Contains(opts.ExcludeCharacters, " ") {
		allowed = append(allowed, ' ')
	}

	if len(allowed) == 0 {
		return "", awserr.InvalidParameter.WithMessage("The requested exclusions leave no characters to choose from.")
	}

	if !opts.RequireEachIncludedType {
		password := make([]byte, length)
		for i := range password {
			c, err := randomChar(allowed)
			if err != nil {
				return "", err
			}
			password[i] = c
		}
		return string(password), nil
	}

	if length < int64(len(typeSets)) {
		return "", awserr.InvalidParameter.WithMessage("PasswordLength is too short to include each required character type.")
	}

	password := make([]byte, 0, length)

	// One character from each included type, then fill from the full set
	for _, set := range typeSets {
		if len(set) == 0 {
			return "", awserr.InvalidParameter.WithMessage("The requested exclusions leave an included character type empty.")
		}
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	for int64(len(password)) < length {
		c, err := randomChar(allowed)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	// Shuffle so the required characters are not clustered at the front
	for i := len(password) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		password[i], password[j] = password[j], password[i]
	}

	return string(password), nil
}

func randomChar(set []byte) (byte, error) {
	index, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[index], nil
}

func randomIndex(n int) (int, error) {
	index, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(index.Int64()), nil
}
