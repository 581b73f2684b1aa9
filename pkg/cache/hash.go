package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return fmt.Sprintf("%s:%s", prefix, Hash(data))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyType returns the kind of entry a key names, ignoring any scope
// prefix: "artifact" for "user:1:artifact:svg:ab12".
func KeyType(key string) string {
	for _, seg := range strings.Split(key, ":") {
		switch seg {
		case "layout", "artifact":
			return seg
		}
	}
	return "other"
}
