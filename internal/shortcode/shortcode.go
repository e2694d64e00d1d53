// Package shortcode generates random short link identifiers.
package shortcode

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
)

// Length of generated codes. Custom codes may be 4-20 characters.
const Length = 8

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,20}$`)

// Generate returns a random URL-safe code of Length characters. Codes are
// drawn from crypto/rand, so collisions are birthday-bound and the caller
// must still verify uniqueness before accepting one.
func Generate() string {
	bytes := make([]byte, Length)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)[:Length]
}

// Valid reports whether s is a syntactically acceptable short code.
// Anything else is rejected before reaching the cache or the store.
func Valid(s string) bool {
	return codePattern.MatchString(s)
}
