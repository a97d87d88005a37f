// Command vmivr runs the voicemail IVR service with a console front end.
// Digits typed on stdin are fed to the state machine exactly as DTMF
// digits from a call would be; actions are executed against a driver
// that prints what a media stream would play. The same Runner and
// Session drive real calls when embedded in the PBX.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/flowpbx/voicemail/internal/audio"
	"github.com/flowpbx/voicemail/internal/call"
	"github.com/flowpbx/voicemail/internal/config"
	"github.com/flowpbx/voicemail/internal/ivr"
	"github.com/flowpbx/voicemail/internal/mailbox"
	"github.com/flowpbx/voicemail/internal/prompts"
	"github.com/flowpbx/voicemail/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging. Logs go to stderr so the console
	// session output stays readable.
	logger := slog.New(cfg.SlogHandler(os.Stderr))
	slog.SetDefault(logger)

	slog.Info("starting vmivr", "data_dir", cfg.DataDir)

	// Unpack the system prompt set so deployments can replace individual
	// prompt files without rebuilding.
	if err := prompts.ExtractToDataDir(cfg.DataDir); err != nil {
		slog.Error("failed to extract system prompts", "error", err)
		os.Exit(1)
	}

	// Open database and run migrations.
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	messages := storage.NewMessageRepository(db)
	creds := storage.NewCredentialRepository(db)

	var managerOpts []mailbox.ManagerOption
	if cfg.PINFile != "" {
		pins, err := config.ParsePINFile(cfg.PINFile)
		if err != nil {
			slog.Error("failed to load pin file", "error", err)
			os.Exit(1)
		}
		slog.Info("loaded provisioning pins", "count", len(pins))
		managerOpts = append(managerOpts, mailbox.WithConfigPINs(pins))
	}
	manager := mailbox.NewManager(messages, creds, cfg.DataDir, logger, managerOpts...)

	if cfg.RetentionDays > 0 {
		mailbox.StartCleanupTicker(appCtx, messages, cfg.RetentionDays, time.Hour)
	}

	guard := ivr.NewAuthGuard(ivr.DefaultAuthGuardConfig(), logger)
	defer guard.Stop()

	catalog := prompts.NewCatalog(cfg.DataDir)

	// Shut the console session down on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		slog.Info("received shutdown signal", "signal", sig.String())
		appCancel()
	}()

	if err := runConsole(appCtx, cfg, manager, guard, catalog, logger); err != nil {
		slog.Error("console session failed", "error", err)
		os.Exit(1)
	}

	slog.Info("vmivr stopped")
}

// runConsole answers one console "call" at a time: it asks for an
// extension, then runs a full IVR session over stdin digits.
func runConsole(ctx context.Context, cfg *config.Config, manager *mailbox.Manager, guard *ivr.AuthGuard, catalog *prompts.Catalog, logger *slog.Logger) error {
	in := bufio.NewScanner(os.Stdin)

	for ctx.Err() == nil {
		fmt.Print("extension, or 'deposit <ext> <caller>' (empty to quit)> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			return nil
		}

		if rest, ok := strings.CutPrefix(line, "deposit "); ok {
			runDeposit(ctx, cfg, manager, catalog, rest, logger)
			continue
		}

		box, err := manager.Mailbox(ctx, line)
		if err != nil {
			fmt.Printf("cannot open mailbox %s: %v\n", line, err)
			continue
		}

		if err := runSession(ctx, cfg, box, guard, catalog, in, logger); err != nil {
			logger.Error("ivr session error", "mailbox", line, "error", err)
		}
	}
	return nil
}

// runDeposit simulates an outside caller leaving a message: the greeting
// plays, and the console driver's stand-in recording is stored.
func runDeposit(ctx context.Context, cfg *config.Config, manager *mailbox.Manager, catalog *prompts.Catalog, args string, logger *slog.Logger) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Println("usage: deposit <extension> <caller_id>")
		return
	}

	box, err := manager.Mailbox(ctx, fields[0])
	if err != nil {
		fmt.Printf("cannot open mailbox %s: %v\n", fields[0], err)
		return
	}

	c := &consoleCall{id: uuid.NewString()}
	d := &consoleDriver{catalog: catalog}

	// A closed digit channel ends the recording immediately, as if the
	// caller pressed '#' right after the tone.
	digits := make(chan byte)
	close(digits)

	res, err := call.Deposit(ctx, c, d, box, fields[1], digits,
		time.Duration(cfg.MaxRecordSecs)*time.Second, logger)
	if err != nil {
		fmt.Printf("deposit failed: %v\n", err)
		return
	}
	if res == nil {
		fmt.Println("nothing recorded")
		return
	}
	fmt.Printf("message %s stored (%ds)\n", res.MessageID, res.Duration)
}

// runSession drives one IVR session for an already resolved mailbox.
func runSession(ctx context.Context, cfg *config.Config, box *mailbox.Mailbox, guard *ivr.AuthGuard, catalog *prompts.Catalog, in *bufio.Scanner, logger *slog.Logger) error {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &consoleCall{id: uuid.NewString()}
	d := &consoleDriver{catalog: catalog}

	session := ivr.NewSession(callCtx, box, logger,
		ivr.WithMaxPINAttempts(cfg.MaxPINAttempts),
		ivr.WithAuthGuard(guard),
		ivr.WithPINDebug(cfg.PINDebug),
	)

	// Feed typed characters to the runner the way the RTP layer feeds
	// telephone events. "bye" simulates the far end hanging up.
	digits := make(chan byte, 16)
	go func() {
		defer close(digits)
		fmt.Println("call connected; type digits (0-9, *, #), or 'bye' to hang up")
		for in.Scan() {
			line := strings.TrimSpace(in.Text())
			if line == "bye" {
				c.Hangup()
				return
			}
			for i := 0; i < len(line); i++ {
				if c.State() != call.CallStateConnected {
					return
				}
				digits <- line[i]
			}
			if c.State() != call.CallStateConnected {
				return
			}
		}
	}()

	runner := call.NewRunner(c, d, session, digits, logger)
	err := runner.Run(callCtx)
	c.Hangup()
	fmt.Println("call ended")
	return err
}

// consoleCall is a call whose far end is the terminal.
type consoleCall struct {
	id         string
	terminated atomic.Bool
}

func (c *consoleCall) ID() string { return c.id }

func (c *consoleCall) State() call.CallState {
	if c.terminated.Load() {
		return call.CallStateTerminated
	}
	return call.CallStateConnected
}

func (c *consoleCall) Hangup() {
	c.terminated.Store(true)
}

// consoleDriver prints what the media stream would play and fabricates
// recordings as short silence so greeting flows can be exercised without
// an RTP stack.
type consoleDriver struct {
	catalog   *prompts.Catalog
	recording bool
}

func (d *consoleDriver) PlayPrompt(_ context.Context, key string) error {
	fmt.Printf("  [play prompt %q -> %s]\n", key, d.catalog.Path(key))
	return nil
}

func (d *consoleDriver) PlayFile(_ context.Context, path string) error {
	fmt.Printf("  [play file %s]\n", path)
	return nil
}

func (d *consoleDriver) PlayBytes(_ context.Context, data []byte) error {
	fmt.Printf("  [play recording, %d bytes]\n", len(data))
	return nil
}

func (d *consoleDriver) StartRecording(_ context.Context, kind string) error {
	fmt.Printf("  [recording %s; press # to stop]\n", kind)
	d.recording = true
	return nil
}

func (d *consoleDriver) StopRecording(_ context.Context) ([]byte, error) {
	if !d.recording {
		return nil, fmt.Errorf("no recording in progress")
	}
	d.recording = false
	fmt.Println("  [recording stopped]")
	// Two seconds of u-law silence stands in for captured audio.
	return audio.EncodeWAV(audio.FormatPCMU, audio.Silence(audio.FormatPCMU, 2*time.Second))
}
