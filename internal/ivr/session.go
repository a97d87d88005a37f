// Package ivr implements the DTMF-driven voicemail access state machine.
// One Session exists per active call and is driven one digit at a time by
// the hosting call layer; it returns action descriptors and never touches
// the media stream itself.
package ivr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flowpbx/voicemail/internal/mailbox"
	"github.com/flowpbx/voicemail/internal/prompts"
)

// State identifies a position in the IVR menu flow.
type State string

const (
	StateWelcome           State = "welcome"
	StatePINEntry          State = "pin_entry"
	StateMainMenu          State = "main_menu"
	StateOptionsMenu       State = "options_menu"
	StatePlayingMessage    State = "playing_message"
	StateMessageMenu       State = "message_menu"
	StateRecordingGreeting State = "recording_greeting"
	StateGreetingReview    State = "greeting_review"
	StateGoodbye           State = "goodbye"
)

const (
	// DefaultMaxPINAttempts is the number of failed PIN entries before
	// the session is force-terminated.
	DefaultMaxPINAttempts = 3

	// maxPINDigits caps the PIN entry buffer. Digits beyond the cap are
	// swallowed so the buffer cannot grow without bound.
	maxPINDigits = 10
)

// Box is the mailbox capability surface the session needs. *mailbox.Mailbox
// satisfies it; tests substitute fakes.
type Box interface {
	Extension() string
	Messages(ctx context.Context, unreadOnly bool) ([]mailbox.Message, error)
	MarkListened(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) (bool, error)
	SaveGreeting(data []byte) error
	DeleteGreeting() (bool, error)
	HasCustomGreeting() bool
	VerifyPIN(candidate string) bool
}

// Session is a single caller's voicemail access session. It owns all
// transient session state (PIN buffer, message cursor, greeting buffer)
// and must not be shared across goroutines: the call layer delivers
// digits one at a time, in receipt order.
type Session struct {
	id     string
	ctx    context.Context
	box    Box
	logger *slog.Logger

	maxPINAttempts int
	pinDebug       bool
	guard          *AuthGuard

	state       State
	pinAttempts int
	enteredPIN  []byte

	// messages is the snapshot being browsed, taken when the caller
	// chooses "listen" in the main menu. msgIndex is the cursor into it.
	messages []mailbox.Message
	msgIndex int

	// greeting holds a just-recorded greeting pending review.
	greeting []byte
}

// Option customizes a Session.
type Option func(*Session)

// WithMaxPINAttempts overrides the PIN failure limit.
func WithMaxPINAttempts(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxPINAttempts = n
		}
	}
}

// WithPINDebug enables verbose PIN entry logging for this session. Keep
// off outside of troubleshooting: it writes entered PINs to the debug log.
func WithPINDebug(enabled bool) Option {
	return func(s *Session) {
		s.pinDebug = enabled
	}
}

// WithAuthGuard attaches a cross-session PIN attempt limiter.
func WithAuthGuard(g *AuthGuard) Option {
	return func(s *Session) {
		s.guard = g
	}
}

// NewSession creates a session for one call against one mailbox. ctx is
// the hosting call's context and bounds the session's mailbox reads.
func NewSession(ctx context.Context, box Box, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		id:             uuid.NewString(),
		ctx:            ctx,
		box:            box,
		maxPINAttempts: DefaultMaxPINAttempts,
		state:          StateWelcome,
		enteredPIN:     make([]byte, 0, maxPINDigits),
	}
	s.logger = logger.With("subsystem", "ivr", "session_id", s.id, "mailbox", box.Extension())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// HandleDTMF advances the state machine by one digit ('0'–'9', '*', '#')
// and returns the action the call layer should execute. It never fails:
// unrecognized digits surface as invalid-option prompts, storage failures
// as failure prompts. The caller must serialize invocations and execute
// each returned action before delivering the next digit.
func (s *Session) HandleDTMF(digit byte) Action {
	s.logger.Debug("dtmf received", "digit", string(digit), "state", string(s.state))

	switch s.state {
	case StateWelcome:
		return s.handleWelcome(digit)
	case StatePINEntry:
		return s.handlePINEntry(digit)
	case StateMainMenu:
		return s.handleMainMenu(digit)
	case StateOptionsMenu:
		return s.handleOptionsMenu(digit)
	case StatePlayingMessage:
		return s.handlePlayingMessage(digit)
	case StateMessageMenu:
		return s.handleMessageMenu(digit)
	case StateRecordingGreeting:
		return s.handleRecordingGreeting(digit)
	case StateGreetingReview:
		return s.handleGreetingReview(digit)
	case StateGoodbye:
		return Action{Type: ActionHangup, Prompt: prompts.Goodbye}
	default:
		s.logger.Error("ivr session in unknown state", "state", string(s.state))
		return Action{Type: ActionUnknownState, Prompt: prompts.Goodbye}
	}
}

// SaveRecordedGreeting stores captured audio into the transient greeting
// buffer, pending review. Called by the call layer between the
// start_recording and stop_recording actions. Returns false for empty
// input.
func (s *Session) SaveRecordedGreeting(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	s.greeting = append(s.greeting[:0], data...)
	s.logger.Debug("greeting recording buffered", "bytes", len(data))
	return true
}

// RecordedGreeting returns the buffered greeting recording, or nil if
// none is pending.
func (s *Session) RecordedGreeting() []byte {
	if len(s.greeting) == 0 {
		return nil
	}
	return s.greeting
}

// handleWelcome transitions to PIN entry on any digit. A numeric digit is
// both the trigger and the first collected PIN digit.
func (s *Session) handleWelcome(digit byte) Action {
	s.state = StatePINEntry
	if isDigit(digit) {
		s.appendPINDigit(digit)
	}
	return Action{
		Type:    ActionPlayPrompt,
		Prompt:  prompts.EnterPIN,
		Message: "Please enter your PIN, followed by the pound key.",
	}
}

// handlePINEntry accumulates digits and verifies on '#'. The PIN buffer
// is cleared unconditionally after every verification attempt.
func (s *Session) handlePINEntry(digit byte) Action {
	switch {
	case isDigit(digit):
		s.appendPINDigit(digit)
		return Action{Type: ActionCollectDigit}

	case digit == '#':
		candidate := string(s.enteredPIN)
		ok := s.verifyPIN(candidate)
		s.clearPIN()

		if ok {
			s.pinAttempts = 0
			s.state = StateMainMenu
			s.logger.Info("voicemail login succeeded")
			return s.mainMenuAction()
		}

		s.pinAttempts++
		if s.pinAttempts >= s.maxPINAttempts {
			s.state = StateGoodbye
			s.logger.Warn("voicemail login locked out", "attempts", s.pinAttempts)
			return Action{
				Type:    ActionHangup,
				Prompt:  prompts.Goodbye,
				Message: "Too many failed attempts. Goodbye.",
			}
		}

		s.logger.Info("voicemail login failed", "attempts", s.pinAttempts)
		return Action{
			Type:    ActionPlayPrompt,
			Prompt:  prompts.InvalidPIN,
			Message: "Invalid PIN. Please try again.",
		}

	default:
		// '*' and anything else: no state or buffer change.
		return Action{Type: ActionCollectDigit}
	}
}

func (s *Session) handleMainMenu(digit byte) Action {
	switch digit {
	case '1':
		msgs := s.loadMessages()
		if len(msgs) == 0 {
			return Action{
				Type:    ActionPlayPrompt,
				Prompt:  prompts.NoMessages,
				Message: "You have no messages.",
			}
		}
		s.messages = msgs
		s.msgIndex = 0
		s.state = StatePlayingMessage
		return s.playMessageAction(msgs[0])

	case '2':
		s.state = StateOptionsMenu
		return Action{
			Type:    ActionPlayPrompt,
			Prompt:  prompts.OptionsMenu,
			Message: "Press 1 to record a new greeting, or star to return to the main menu.",
		}

	case '*':
		s.state = StateGoodbye
		return Action{Type: ActionHangup, Prompt: prompts.Goodbye, Message: "Goodbye."}

	default:
		return s.invalidOption()
	}
}

func (s *Session) handleOptionsMenu(digit byte) Action {
	switch digit {
	case '1':
		s.greeting = nil
		s.state = StateRecordingGreeting
		return Action{
			Type:          ActionStartRecording,
			RecordingType: "greeting",
			Prompt:        prompts.RecordGreeting,
			Message:       "Record your greeting after the tone, then press pound.",
		}

	case '*':
		s.state = StateMainMenu
		return s.mainMenuAction()

	default:
		return s.invalidOption()
	}
}

// handlePlayingMessage treats any digit as the playback-complete signal
// from the media layer. The current message is marked listened at this
// point.
func (s *Session) handlePlayingMessage(digit byte) Action {
	if m, ok := s.currentMessage(); ok && !m.Listened {
		if err := s.box.MarkListened(s.ctx, m.ID); err != nil {
			s.logger.Error("failed to mark message listened", "message_id", m.ID, "error", err)
		} else {
			s.messages[s.msgIndex].Listened = true
		}
	}

	s.state = StateMessageMenu
	return Action{
		Type:    ActionPlayPrompt,
		Prompt:  prompts.MessageMenu,
		Message: "Press 1 to replay, 2 for the next message, 3 to delete, or star for the main menu.",
	}
}

func (s *Session) handleMessageMenu(digit byte) Action {
	// The snapshot may be stale: a concurrent session for the same
	// mailbox can delete messages out from under the cursor. Re-validate
	// before acting on it.
	s.resyncCursor()

	switch digit {
	case '1':
		m, ok := s.currentMessage()
		if !ok {
			return s.endOfMessages()
		}
		s.state = StatePlayingMessage
		return s.playMessageAction(m)

	case '2':
		s.msgIndex++
		m, ok := s.currentMessage()
		if !ok {
			return s.endOfMessages()
		}
		s.state = StatePlayingMessage
		return s.playMessageAction(m)

	case '3':
		return s.deleteCurrentMessage()

	case '*':
		s.state = StateMainMenu
		return s.mainMenuAction()

	default:
		return s.invalidOption()
	}
}

func (s *Session) handleRecordingGreeting(digit byte) Action {
	if digit == '#' {
		s.state = StateGreetingReview
		return Action{
			Type:    ActionStopRecording,
			SaveAs:  "greeting",
			Prompt:  prompts.GreetingReview,
			Message: "Press 1 to review, 2 to re-record, 3 to delete your custom greeting, or star to save.",
		}
	}
	// Everything else is swallowed: the media layer keeps capturing
	// audio out of band.
	return Action{Type: ActionContinueRecording}
}

func (s *Session) handleGreetingReview(digit byte) Action {
	switch digit {
	case '1':
		return Action{Type: ActionPlayGreeting}

	case '2':
		s.greeting = nil
		s.state = StateRecordingGreeting
		return Action{
			Type:          ActionStartRecording,
			RecordingType: "greeting",
			Prompt:        prompts.RecordGreeting,
			Message:       "Record your greeting after the tone, then press pound.",
		}

	case '3':
		s.greeting = nil
		s.state = StateMainMenu
		if _, err := s.box.DeleteGreeting(); err != nil {
			s.logger.Error("failed to delete greeting", "error", err)
			return Action{
				Type:    ActionPlayPrompt,
				Prompt:  prompts.GreetingDeleteFailed,
				Message: "Your greeting could not be deleted.",
			}
		}
		return Action{
			Type:    ActionPlayPrompt,
			Prompt:  prompts.GreetingDeleted,
			Message: "Your custom greeting has been deleted.",
		}

	case '*':
		data := s.greeting
		s.greeting = nil
		s.state = StateMainMenu
		if len(data) == 0 {
			s.logger.Warn("greeting save requested with no recording buffered")
			return Action{
				Type:    ActionPlayPrompt,
				Prompt:  prompts.GreetingSaveFailed,
				Message: "No greeting was recorded.",
			}
		}
		if err := s.box.SaveGreeting(data); err != nil {
			s.logger.Error("failed to save greeting", "error", err)
			return Action{
				Type:    ActionPlayPrompt,
				Prompt:  prompts.GreetingSaveFailed,
				Message: "Your greeting could not be saved.",
			}
		}
		return Action{
			Type:    ActionPlayPrompt,
			Prompt:  prompts.GreetingSaved,
			Message: "Your greeting has been saved.",
		}

	default:
		return s.invalidOption()
	}
}

// deleteCurrentMessage removes the message under the cursor. After a
// confirmed deletion the next message auto-plays; at the end of the list
// the session returns to the main menu.
func (s *Session) deleteCurrentMessage() Action {
	m, ok := s.currentMessage()
	if !ok {
		return s.endOfMessages()
	}

	deleted, err := s.box.DeleteMessage(s.ctx, m.ID)
	if err != nil {
		// Nothing changed; never report success. Stay in the message
		// menu so the caller can retry or move on.
		s.logger.Error("failed to delete message", "message_id", m.ID, "error", err)
		return Action{
			Type:    ActionPlayPrompt,
			Prompt:  prompts.MessageDeleteFailed,
			Message: "The message could not be deleted.",
		}
	}
	if !deleted {
		// A concurrent session already removed it; treat it as gone.
		s.logger.Debug("message already deleted", "message_id", m.ID)
	}

	s.messages = append(s.messages[:s.msgIndex], s.messages[s.msgIndex+1:]...)
	if s.msgIndex < len(s.messages) {
		s.state = StatePlayingMessage
		return s.playMessageAction(s.messages[s.msgIndex])
	}

	s.state = StateMainMenu
	return Action{
		Type:        ActionPlayPrompt,
		Prompt:      prompts.MessageDeleted,
		Message:     "Message deleted.",
		UnreadCount: s.unreadCount(),
	}
}

// endOfMessages returns to the main menu when the cursor runs off the end
// of the snapshot.
func (s *Session) endOfMessages() Action {
	if s.msgIndex > len(s.messages) {
		s.msgIndex = len(s.messages)
	}
	s.state = StateMainMenu
	return Action{
		Type:        ActionPlayPrompt,
		Prompt:      prompts.NoMoreMessages,
		Message:     "No more messages.",
		UnreadCount: s.unreadCount(),
	}
}

// verifyPIN checks the candidate against the mailbox credential, going
// through the cross-session attempt guard first when one is attached.
func (s *Session) verifyPIN(candidate string) bool {
	if s.pinDebug {
		s.logger.Debug("verifying pin", "candidate", candidate, "attempt", s.pinAttempts+1)
	}

	if s.guard != nil && !s.guard.Allow(s.box.Extension()) {
		s.logger.Warn("pin verification rejected by attempt guard")
		return false
	}

	ok := s.box.VerifyPIN(candidate)
	if s.guard != nil {
		if ok {
			s.guard.RecordSuccess(s.box.Extension())
		} else {
			s.guard.RecordFailure(s.box.Extension())
		}
	}
	return ok
}

// appendPINDigit adds a digit to the PIN buffer, respecting the cap.
func (s *Session) appendPINDigit(digit byte) {
	if len(s.enteredPIN) >= maxPINDigits {
		return
	}
	s.enteredPIN = append(s.enteredPIN, digit)
	if s.pinDebug {
		s.logger.Debug("pin digit collected", "buffer", string(s.enteredPIN))
	}
}

// clearPIN wipes the PIN buffer. Called unconditionally after every
// verification attempt so the PIN never outlives one cycle.
func (s *Session) clearPIN() {
	for i := range s.enteredPIN {
		s.enteredPIN[i] = 0
	}
	s.enteredPIN = s.enteredPIN[:0]
}

// loadMessages fetches the snapshot for browsing: unread messages first,
// falling back to all messages when none are unread. Storage errors
// degrade to an empty list.
func (s *Session) loadMessages() []mailbox.Message {
	msgs, err := s.box.Messages(s.ctx, true)
	if err != nil {
		s.logger.Error("failed to load unread messages", "error", err)
		return nil
	}
	if len(msgs) > 0 {
		return msgs
	}

	msgs, err = s.box.Messages(s.ctx, false)
	if err != nil {
		s.logger.Error("failed to load messages", "error", err)
		return nil
	}
	return msgs
}

// resyncCursor drops snapshot entries that no longer exist in the mailbox
// and repositions the cursor. The current message keeps the cursor if it
// survives; otherwise the cursor points at its successor.
func (s *Session) resyncCursor() {
	if len(s.messages) == 0 {
		return
	}

	live, err := s.box.Messages(s.ctx, false)
	if err != nil {
		s.logger.Error("failed to re-validate message cursor", "error", err)
		return
	}

	exists := make(map[string]bool, len(live))
	for _, m := range live {
		exists[m.ID] = true
	}

	var currentID string
	if m, ok := s.currentMessage(); ok {
		currentID = m.ID
	}

	kept := s.messages[:0]
	newIndex := -1
	for i, m := range s.messages {
		if !exists[m.ID] {
			continue
		}
		if m.ID == currentID {
			newIndex = len(kept)
		} else if newIndex == -1 && i >= s.msgIndex {
			// Current message is gone; land on its successor.
			newIndex = len(kept)
		}
		kept = append(kept, m)
	}

	s.messages = kept
	if newIndex >= 0 {
		s.msgIndex = newIndex
	} else if s.msgIndex > len(kept) {
		s.msgIndex = len(kept)
	}
}

// currentMessage returns the message under the cursor, if in bounds.
func (s *Session) currentMessage() (mailbox.Message, bool) {
	if s.msgIndex < 0 || s.msgIndex >= len(s.messages) {
		return mailbox.Message{}, false
	}
	return s.messages[s.msgIndex], true
}

// unreadCount reads the current unread total; errors degrade to zero.
func (s *Session) unreadCount() int {
	msgs, err := s.box.Messages(s.ctx, true)
	if err != nil {
		s.logger.Error("failed to count unread messages", "error", err)
		return 0
	}
	return len(msgs)
}

// mainMenuAction builds the main menu prompt with the unread count.
func (s *Session) mainMenuAction() Action {
	unread := s.unreadCount()
	return Action{
		Type:        ActionPlayPrompt,
		Prompt:      prompts.MainMenu,
		UnreadCount: unread,
		Message: fmt.Sprintf(
			"You have %d unread messages. Press 1 to listen to your messages, 2 for mailbox options, or star to exit.",
			unread),
	}
}

// playMessageAction builds the descriptor for playing one message.
func (s *Session) playMessageAction(m mailbox.Message) Action {
	return Action{
		Type:      ActionPlayMessage,
		MessageID: m.ID,
		FilePath:  m.FilePath,
		CallerID:  m.CallerID,
		Message:   fmt.Sprintf("Message from %s.", m.CallerID),
	}
}

func (s *Session) invalidOption() Action {
	return Action{
		Type:    ActionPlayPrompt,
		Prompt:  prompts.InvalidOption,
		Message: "Invalid option. Please try again.",
	}
}

// isDigit reports whether b is an ASCII digit '0'–'9'.
func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
