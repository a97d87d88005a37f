package prompts

// Prompt keys returned by the IVR in action descriptors. Each key has a
// matching system/<key>.wav default in the embedded prompt set.
const (
	EnterPIN             = "enter_pin"
	InvalidPIN           = "invalid_pin"
	MainMenu             = "main_menu"
	OptionsMenu          = "options_menu"
	NoMessages           = "no_messages"
	InvalidOption        = "invalid_option"
	MessageMenu          = "message_menu"
	NoMoreMessages       = "no_more_messages"
	MessageDeleted       = "message_deleted"
	MessageDeleteFailed  = "message_delete_failed"
	RecordGreeting       = "record_greeting"
	GreetingReview       = "greeting_review"
	GreetingSaved        = "greeting_saved"
	GreetingSaveFailed   = "greeting_save_failed"
	GreetingDeleted      = "greeting_deleted"
	GreetingDeleteFailed = "greeting_delete_failed"
	Goodbye              = "goodbye"

	// DefaultGreeting is played to depositing callers when a mailbox has
	// no custom greeting.
	DefaultGreeting = "default_greeting"
)

// Keys lists every prompt key with an embedded default, in extraction order.
var Keys = []string{
	EnterPIN,
	InvalidPIN,
	MainMenu,
	OptionsMenu,
	NoMessages,
	InvalidOption,
	MessageMenu,
	NoMoreMessages,
	MessageDeleted,
	MessageDeleteFailed,
	RecordGreeting,
	GreetingReview,
	GreetingSaved,
	GreetingSaveFailed,
	GreetingDeleted,
	GreetingDeleteFailed,
	Goodbye,
	DefaultGreeting,
}
