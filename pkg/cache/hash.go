package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey derives a cache key from a stage prefix and the JSON form of the
// identifying parts (matrix fingerprint plus options for search, newick
// text plus options for render). The full 64-hex-char sha256 keeps distinct
// inputs from colliding; the prefix keeps the stages apart.
func hashKey(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}
