// Package id generates identifiers for checks and downloaded files.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PrefixCheck prefixes check ids, e.g. "chk-V1StGXR8_Z5jdHi6B-myT".
const PrefixCheck = "chk"

const (
	fileAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	fileTokenLen = 12
)

// Generate creates a prefixed NanoID (21 URL-safe characters after the prefix).
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewCheckID returns a fresh check id.
func NewCheckID() (string, error) {
	return Generate(PrefixCheck)
}

// FileToken returns a short lower-case alphanumeric token for prefixing
// downloaded file names, so concurrent checks never collide even when two
// servers hand out the same file name.
func FileToken() (string, error) {
	tok, err := gonanoid.Generate(fileAlphabet, fileTokenLen)
	if err != nil {
		return "", fmt.Errorf("generate file token: %w", err)
	}
	return tok, nil
}
