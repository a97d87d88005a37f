package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowpbx/voicemail/internal/ivr"
)

// ErrCallTerminated is returned internally when the hosting call ends
// mid-session. The runner treats it as a normal end of session, never as
// a failure.
var ErrCallTerminated = errors.New("call terminated")

// Runner drives one IVR session against one call. It reads digits in
// receipt order from a source channel, feeds them to the session one at
// a time, and executes each returned action before taking the next
// digit. Before every action it re-checks the context and the call
// state, so an asynchronous BYE aborts the session without another
// HandleDTMF call and without pushing audio to a dead call.
type Runner struct {
	call    Call
	driver  Driver
	session *ivr.Session
	digits  <-chan byte
	logger  *slog.Logger
}

// NewRunner creates a runner. The digits channel is typically fed by the
// RTP telephone-event collector; closing it ends the session.
func NewRunner(c Call, d Driver, session *ivr.Session, digits <-chan byte, logger *slog.Logger) *Runner {
	return &Runner{
		call:    c,
		driver:  d,
		session: session,
		digits:  digits,
		logger:  logger.With("subsystem", "ivr-runner", "call_id", c.ID()),
	}
}

// Run executes the session until the caller hangs up, the IVR requests
// hangup, the digit source closes, or ctx is cancelled. Driver failures
// are logged and the session continues; they are not fatal.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ivr session cancelled", "session_id", r.session.ID())
			return nil

		case digit, ok := <-r.digits:
			if !ok {
				r.logger.Info("digit source closed, ending ivr session",
					"session_id", r.session.ID())
				return nil
			}

			// The call may have received a BYE while we were waiting.
			if !r.connected(ctx) {
				r.logger.Info("call terminated, aborting ivr session",
					"session_id", r.session.ID())
				return nil
			}

			action := r.session.HandleDTMF(digit)

			err := r.execute(ctx, action)
			if errors.Is(err, ErrCallTerminated) {
				r.logger.Info("call terminated during action, aborting ivr session",
					"session_id", r.session.ID(),
					"action", string(action.Type),
				)
				return nil
			}
			if err != nil {
				r.logger.Error("ivr action failed",
					"session_id", r.session.ID(),
					"action", string(action.Type),
					"error", err,
				)
			}

			if action.Type == ivr.ActionHangup || action.Type == ivr.ActionUnknownState {
				r.call.Hangup()
				return nil
			}
		}
	}
}

// execute performs one action descriptor against the driver. The
// context and call state are checked first: a terminated call aborts
// before any audio is pushed.
func (r *Runner) execute(ctx context.Context, action ivr.Action) error {
	if !r.connected(ctx) {
		return ErrCallTerminated
	}

	switch action.Type {
	case ivr.ActionPlayPrompt:
		return r.driver.PlayPrompt(ctx, action.Prompt)

	case ivr.ActionCollectDigit, ivr.ActionContinueRecording:
		// Nothing to do; the media layer keeps collecting/capturing.
		return nil

	case ivr.ActionPlayMessage:
		return r.driver.PlayFile(ctx, action.FilePath)

	case ivr.ActionStartRecording:
		// Instruction prompt plays before capture begins.
		if action.Prompt != "" {
			if err := r.driver.PlayPrompt(ctx, action.Prompt); err != nil {
				return err
			}
		}
		return r.driver.StartRecording(ctx, action.RecordingType)

	case ivr.ActionStopRecording:
		data, err := r.driver.StopRecording(ctx)
		if err != nil {
			return fmt.Errorf("stopping recording: %w", err)
		}
		if !r.session.SaveRecordedGreeting(data) {
			r.logger.Warn("recording produced no audio", "session_id", r.session.ID())
		}
		if action.Prompt != "" {
			return r.driver.PlayPrompt(ctx, action.Prompt)
		}
		return nil

	case ivr.ActionPlayGreeting:
		return r.driver.PlayBytes(ctx, r.session.RecordedGreeting())

	case ivr.ActionHangup, ivr.ActionUnknownState:
		// Play the goodbye prompt if one was requested; hangup itself
		// happens in Run.
		if action.Prompt != "" {
			return r.driver.PlayPrompt(ctx, action.Prompt)
		}
		return nil

	default:
		r.logger.Error("unhandled ivr action", "action", string(action.Type))
		return nil
	}
}

// connected reports whether the session may keep going.
func (r *Runner) connected(ctx context.Context) bool {
	return ctx.Err() == nil && r.call.State() == CallStateConnected
}
