package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// keySeparator is the ASCII unit separator. A decoded url may contain it
// (%1F), but the three trailing fields are decimal integers, so splitting
// from the right is still unambiguous.
const keySeparator = "\x1f"

// Key identifies a transformed image. It is the hex SHA-256 of the transform parameters.
type Key string

// DeriveKey builds the cache key for a source URL and its transform parameters
func DeriveKey(sourceURL string, levels, width, height int) Key {
	raw := strings.Join([]string{
		sourceURL,
		strconv.Itoa(levels),
		strconv.Itoa(width),
		strconv.Itoa(height),
	}, keySeparator)

	sum := sha256.Sum256([]byte(raw))
	return Key(hex.EncodeToString(sum[:]))
}

// ETag returns the quoted strong entity tag for the key
func (k Key) ETag() string {
	return `"` + string(k) + `"`
}

// Valid reports whether k looks like a key produced by DeriveKey
func (k Key) Valid() bool {
	if len(k) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return string(k)
}
