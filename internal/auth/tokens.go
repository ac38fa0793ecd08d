package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewToken derives an opaque credential token from a timestamp and fresh
// random material. Collisions are astronomically unlikely but the store
// still detects them via the uniqueness constraint.
func NewToken(now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d--%s", now.UnixNano(), uuid.NewString())))
	return hex.EncodeToString(sum[:])
}
