package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputePositionID computes a deterministic position id using SHA256.
// Formula: SHA256(strategy|leg_id|sequence|contract_id|side|entry_ts_ms)
// Returns hex-encoded hash (64 characters). Identical inputs always
// produce identical ids, independent of the run they occur in.
func ComputePositionID(
	strategy string,
	legID string,
	sequence int,
	contractID string,
	side string,
	entryTime time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s|%d",
		strategy,
		legID,
		sequence,
		contractID,
		side,
		entryTime.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
