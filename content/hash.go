package content

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes the SHA-256 digest of data. The digest doubles as the
// object's etag and as the key for upload deduplication locking.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
