package importer

import (
	"crypto/sha256"
	"fmt"
)

// FileFingerprint computes the whole-file content digest used for
// batch-level idempotency.
func FileFingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
