package call

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowpbx/voicemail/internal/audio"
	"github.com/flowpbx/voicemail/internal/prompts"
)

// DefaultMaxDepositDuration caps how long a caller may record a message.
const DefaultMaxDepositDuration = 3 * time.Minute

// DepositBox is the mailbox surface the deposit flow needs.
type DepositBox interface {
	Extension() string
	GreetingPath() (string, bool)
	SaveMessage(ctx context.Context, callerID string, data []byte, duration int) (string, error)
}

// DepositResult describes a stored message.
type DepositResult struct {
	MessageID string
	Duration  int
}

// Deposit runs the caller-side flow: play the mailbox greeting (custom if
// one exists, the default otherwise), record until the caller presses '#',
// hangs up, or the duration cap is reached, then store the recording.
// Returns nil when nothing worth storing was captured.
func Deposit(ctx context.Context, c Call, d Driver, box DepositBox, callerID string, digits <-chan byte, maxDuration time.Duration, logger *slog.Logger) (*DepositResult, error) {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDepositDuration
	}
	logger = logger.With("subsystem", "voicemail-deposit",
		"call_id", c.ID(),
		"mailbox", box.Extension(),
	)

	if ctx.Err() != nil || c.State() != CallStateConnected {
		return nil, ErrCallTerminated
	}

	if path, ok := box.GreetingPath(); ok {
		if err := d.PlayFile(ctx, path); err != nil {
			logger.Warn("custom greeting playback failed, using default", "error", err)
			if err := d.PlayPrompt(ctx, prompts.DefaultGreeting); err != nil {
				return nil, fmt.Errorf("playing greeting: %w", err)
			}
		}
	} else {
		if err := d.PlayPrompt(ctx, prompts.DefaultGreeting); err != nil {
			return nil, fmt.Errorf("playing greeting: %w", err)
		}
	}

	if ctx.Err() != nil || c.State() != CallStateConnected {
		return nil, ErrCallTerminated
	}
	if err := d.StartRecording(ctx, "message"); err != nil {
		return nil, fmt.Errorf("starting recording: %w", err)
	}

	waitForRecordingEnd(ctx, c, digits, maxDuration)

	// StopRecording runs even after a BYE so the partial message is kept;
	// a caller hanging up mid-sentence is the normal case.
	data, err := d.StopRecording(ctx)
	if err != nil {
		return nil, fmt.Errorf("stopping recording: %w", err)
	}
	if len(data) <= audio.HeaderSize {
		logger.Info("deposit produced no audio, discarding")
		return nil, nil
	}

	duration := recordingDuration(data)
	id, err := box.SaveMessage(ctx, callerID, data, duration)
	if err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	logger.Info("voicemail deposited",
		"message_id", id,
		"caller_id", callerID,
		"duration_secs", duration,
	)
	return &DepositResult{MessageID: id, Duration: duration}, nil
}

// waitForRecordingEnd blocks until '#' is pressed, the call ends, ctx is
// cancelled, or the duration cap fires. Call state is polled because a
// BYE does not flow through the digit channel.
func waitForRecordingEnd(ctx context.Context, c Call, digits <-chan byte, maxDuration time.Duration) {
	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case digit, ok := <-digits:
			if !ok || digit == '#' {
				return
			}
		case <-poll.C:
			if c.State() != CallStateConnected {
				return
			}
		}
	}
}

// recordingDuration derives the duration in whole seconds from the WAV
// header, falling back to the raw G.711 payload size on a malformed one.
func recordingDuration(data []byte) int {
	hdr, err := audio.ParseHeader(bytes.NewReader(data))
	if err == nil {
		return int(hdr.Duration().Round(time.Second) / time.Second)
	}
	return (len(data) - audio.HeaderSize) / audio.SampleRate
}
