// Package token issues opaque URL-safe tokens for invites and invite links.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/ramonsarchive/ascend/pkg/db"
)

const (
	DefaultBytes = 32
	minBytes     = 16

	// DefaultAttempts bounds how often a colliding token is re-issued.
	DefaultAttempts = 3
)

var ErrExhausted = errors.New("token_attempts_exhausted")

// Issue returns byteLength random bytes encoded as unpadded base64url.
func Issue(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultBytes
	}
	if byteLength < minBytes {
		byteLength = minBytes
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IssueUnique hands fresh tokens to insert until it succeeds or fails with
// anything other than a unique violation. The store's unique constraint is the
// collision guard.
func IssueUnique(byteLength, attempts int, insert func(token string) error) (string, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		value, err := Issue(byteLength)
		if err != nil {
			return "", err
		}

		err = insert(value)
		if err == nil {
			return value, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return "", err
		}
		lastErr = err
	}

	return "", errors.Join(ErrExhausted, lastErr)
}
