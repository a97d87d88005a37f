// Package call bridges the voicemail IVR to a live call: it owns the
// cooperative contract between the state machine and the media layer.
// The IVR never touches the call or the media stream itself; the Runner
// executes its action descriptors and enforces the rule that no audio is
// ever pushed to a terminated call.
package call

import "context"

// CallState is the lifecycle state of the hosting call as seen by the
// voicemail subsystem.
type CallState string

const (
	// CallStateConnected means media can flow.
	CallStateConnected CallState = "connected"
	// CallStateTerminated means the call ended (BYE received or hangup
	// sent); no further audio actions are allowed.
	CallStateTerminated CallState = "terminated"
)

// Call is the signaling-side view of the hosting call. A BYE can arrive
// asynchronously at any point, so State must be checked before every
// audio action.
type Call interface {
	ID() string
	State() CallState
	// Hangup terminates the call. Safe to invoke on an already
	// terminated call.
	Hangup()
}

// Driver executes action descriptors against the call's media stream.
// Playback methods block until the audio finishes or ctx is cancelled.
type Driver interface {
	// PlayPrompt plays a named prompt from the catalog.
	PlayPrompt(ctx context.Context, key string) error
	// PlayFile plays a stored WAV file.
	PlayFile(ctx context.Context, path string) error
	// PlayBytes plays an in-memory WAV recording.
	PlayBytes(ctx context.Context, data []byte) error
	// StartRecording begins out-of-band audio capture. kind tags the
	// purpose ("greeting", "message").
	StartRecording(ctx context.Context, kind string) error
	// StopRecording ends capture and returns the recorded WAV bytes.
	StopRecording(ctx context.Context) ([]byte, error)
}
