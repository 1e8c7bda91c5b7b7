package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TranscriptKey returns the cache key for a content hash.
func TranscriptKey(hash string) string {
	return fmt.Sprintf("transcripts:%s", hash)
}

// HashBytes returns the hex sha256 digest of b, the dedup key for audio
// content. Collisions are assumed negligible.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
