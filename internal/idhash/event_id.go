package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeEventID computes a deterministic lifecycle-event id using SHA256.
// Formula: SHA256(strategy|event_type|leg_id|position_id|at_ms|tick_seq|ordinal)
// The ordinal separates multiple events of the same type produced while
// processing a single tick. Run id is deliberately excluded so replays
// of the same tick sequence yield byte-identical event ids.
func ComputeEventID(
	strategy string,
	eventType string,
	legID string,
	positionID string,
	at time.Time,
	tickSeq int64,
	ordinal int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d",
		strategy,
		eventType,
		legID,
		positionID,
		at.UnixMilli(),
		tickSeq,
		ordinal,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
