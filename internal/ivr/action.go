package ivr

// ActionType enumerates the action descriptors a session can return. The
// session never performs audio I/O itself; the call layer executes the
// returned action against the media stream.
type ActionType string

const (
	// ActionPlayPrompt plays a named prompt from the catalog.
	ActionPlayPrompt ActionType = "play_prompt"
	// ActionCollectDigit asks the call layer to keep collecting digits
	// without replaying a prompt.
	ActionCollectDigit ActionType = "collect_digit"
	// ActionPlayMessage plays a stored voicemail message.
	ActionPlayMessage ActionType = "play_message"
	// ActionStartRecording begins out-of-band audio capture.
	ActionStartRecording ActionType = "start_recording"
	// ActionContinueRecording signals that capture should keep running.
	ActionContinueRecording ActionType = "continue_recording"
	// ActionStopRecording ends capture; the call layer hands the captured
	// bytes to SaveRecordedGreeting.
	ActionStopRecording ActionType = "stop_recording"
	// ActionPlayGreeting plays back the just-recorded greeting buffer.
	ActionPlayGreeting ActionType = "play_greeting"
	// ActionHangup terminates the call.
	ActionHangup ActionType = "hangup"
	// ActionUnknownState is the defensive fallback for an unreachable
	// session state.
	ActionUnknownState ActionType = "unknown_state"
)

// Action is the descriptor returned by Session.HandleDTMF. Only the
// fields relevant to the action type are populated.
type Action struct {
	Type ActionType

	// Prompt is the prompt catalog key to play, if any.
	Prompt string

	// Message is the spoken text for the prompt, for TTS front ends and
	// logs.
	Message string

	// MessageID, FilePath, and CallerID describe the voicemail message
	// for ActionPlayMessage.
	MessageID string
	FilePath  string
	CallerID  string

	// RecordingType tags ActionStartRecording ("greeting").
	RecordingType string

	// SaveAs tags ActionStopRecording with the destination of the
	// captured audio ("greeting").
	SaveAs string

	// UnreadCount carries the unread message count on main menu prompts.
	UnreadCount int
}
