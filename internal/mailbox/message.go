package mailbox

import (
	"fmt"
	"time"
)

// Message is the metadata for a single voicemail message. Audio payloads
// live on disk at FilePath; metadata is persisted through a MessageStore.
type Message struct {
	// ID is unique per mailbox: "<caller_id>_<YYYYMMDD_HHMMSS>".
	// Second-granularity timestamps make collisions unexpected; a
	// colliding save overwrites the earlier message.
	ID        string
	CallerID  string
	Timestamp time.Time
	Duration  int // seconds, 0 if unknown
	FilePath  string
	Listened  bool
}

// messageIDTimeLayout is the timestamp half of a message ID.
const messageIDTimeLayout = "20060102_150405"

// MessageID builds the canonical message ID for a caller and arrival time.
func MessageID(callerID string, at time.Time) string {
	return fmt.Sprintf("%s_%s", callerID, at.Format(messageIDTimeLayout))
}
