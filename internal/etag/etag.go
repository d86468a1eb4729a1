// Package etag builds content-derived validation tokens for conditional
// responses. Every operation is a stateless transform.
package etag

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Hash serializes v and returns a quoted 32-hex digest of the result.
// Serialization is order-preserving over struct fields, so two payloads
// that differ only in field order produce different tokens. The only error
// path is an unserializable value, which callers treat as a programming
// error.
func Hash(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("etag: marshal: %w", err)
	}
	return HashBytes(b), nil
}

// HashBytes digests an already-serialized payload.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// WeakHash returns the weak-comparison form, W/ followed by the strong
// token, signaling that semantic rather than byte equality is acceptable.
func WeakHash(v interface{}) (string, error) {
	strong, err := Hash(v)
	if err != nil {
		return "", err
	}
	return "W/" + strong, nil
}

// Compare reports whether two tokens match after stripping optional
// surrounding quotes. An absent token never matches anything, including
// another absent token.
func Compare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return unquote(a) == unquote(b)
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
