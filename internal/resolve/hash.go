package resolve

import (
	"crypto/sha1"
	"encoding/base32"
	"strings"
)

// DefaultHashLen is the default truncation length of the content digest.
// Six base32 characters keep table names readable; raise it when running
// enough distinct statements for collisions to matter.
const DefaultHashLen = 6

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// ShortHash returns an identifier-safe digest of s, truncated to n
// characters: SHA-1 over the UTF-8 bytes, base32, lowercased. It depends
// on nothing but its input, which is what makes re-runs idempotent.
func ShortHash(s string, n int) string {
	sum := sha1.Sum([]byte(s))
	enc := strings.ToLower(b32.EncodeToString(sum[:]))
	if n > 0 && n < len(enc) {
		return enc[:n]
	}
	return enc
}
