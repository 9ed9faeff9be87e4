package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a time-based identifier with a short random suffix so two
// allocations in the same millisecond never collide. IDs are never reused
// after deletion.
func NewID(prefix string) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	if prefix == "" {
		return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
