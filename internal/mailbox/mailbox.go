// Package mailbox implements per-extension voicemail boxes: message
// metadata and audio storage, custom greetings, and PIN credentials.
// Mailboxes are shared across concurrent IVR sessions for the same
// extension, so all mutating operations are internally synchronized.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowpbx/voicemail/internal/prompts"
)

// MessageStore persists voicemail message metadata. Audio payloads are
// written to disk by the Mailbox; the store only tracks metadata rows.
type MessageStore interface {
	Insert(ctx context.Context, mailbox string, msg *Message) error
	List(ctx context.Context, mailbox string, unreadOnly bool) ([]Message, error)
	MarkListened(ctx context.Context, mailbox, id string) error
	// Delete removes a message row. It returns the stored file path and
	// whether a row existed; a missing row is not an error.
	Delete(ctx context.Context, mailbox, id string) (filePath string, found bool, err error)
	// DeleteExpired removes messages older than the cutoff across all
	// mailboxes and returns the file paths of the deleted rows.
	DeleteExpired(ctx context.Context, before time.Time) ([]string, error)
}

// CredentialSource resolves PIN credentials from the credential database.
type CredentialSource interface {
	// Lookup returns the stored credential for an extension, or an unset
	// credential if none exists.
	Lookup(ctx context.Context, extension string) (Credential, error)
	Store(ctx context.Context, extension string, hash, salt []byte) error
}

// Mailbox is one extension's voicemail box. Construct through a Manager
// so the credential is resolved once and instances are shared between
// sessions.
type Mailbox struct {
	extension string
	store     MessageStore
	creds     CredentialSource
	dataDir   string
	logger    *slog.Logger
	nowFunc   func() time.Time // injectable for testing

	mu   sync.Mutex
	cred Credential
}

// Extension returns the extension number this mailbox belongs to.
func (b *Mailbox) Extension() string {
	return b.extension
}

// messageDir returns the directory holding this mailbox's audio files.
func (b *Mailbox) messageDir() string {
	return filepath.Join(b.dataDir, "voicemail", fmt.Sprintf("box_%s", b.extension))
}

// SaveMessage stores a new message: the audio payload on disk and a
// metadata row in the store. Returns the new message ID. The audio bytes
// are written verbatim; the media layer hands over a complete WAV file.
func (b *Mailbox) SaveMessage(ctx context.Context, callerID string, audio []byte, duration int) (string, error) {
	now := b.nowFunc()
	id := MessageID(callerID, now)

	dir := b.messageDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating voicemail directory: %w", err)
	}

	path := filepath.Join(dir, id+".wav")
	if err := os.WriteFile(path, audio, 0640); err != nil {
		return "", fmt.Errorf("writing message audio: %w", err)
	}

	msg := &Message{
		ID:        id,
		CallerID:  callerID,
		Timestamp: now,
		Duration:  duration,
		FilePath:  path,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.Insert(ctx, b.extension, msg); err != nil {
		// Keep the captured audio even if the metadata save failed.
		b.logger.Error("failed to save message metadata",
			"mailbox", b.extension,
			"message_id", id,
			"error", err,
		)
		return "", fmt.Errorf("saving message metadata: %w", err)
	}

	b.logger.Info("voicemail message saved",
		"mailbox", b.extension,
		"message_id", id,
		"duration", duration,
	)
	return id, nil
}

// Messages returns the mailbox's messages in arrival order. With
// unreadOnly, only messages not yet marked listened are returned.
func (b *Mailbox) Messages(ctx context.Context, unreadOnly bool) ([]Message, error) {
	return b.store.List(ctx, b.extension, unreadOnly)
}

// MarkListened flags a message as listened. Listened state is the only
// in-place mutation a message supports.
func (b *Mailbox) MarkListened(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.MarkListened(ctx, b.extension, id)
}

// DeleteMessage removes a message and its audio file. Returns false with
// a nil error when the ID is not present; deletion is irreversible and
// not repeatable for the same ID.
func (b *Mailbox) DeleteMessage(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path, found, err := b.store.Delete(ctx, b.extension, id)
	if err != nil {
		return false, fmt.Errorf("deleting message %s: %w", id, err)
	}
	if !found {
		return false, nil
	}

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("failed to remove message audio file",
				"mailbox", b.extension,
				"path", path,
				"error", err,
			)
		}
	}

	b.logger.Info("voicemail message deleted", "mailbox", b.extension, "message_id", id)
	return true, nil
}

// greetingPath returns the on-disk location of the custom greeting.
func (b *Mailbox) greetingPath() string {
	return prompts.GreetingPath(b.dataDir, b.extension)
}

// SaveGreeting stores the custom greeting, overwriting any previous one.
// At most one custom greeting exists per mailbox.
func (b *Mailbox) SaveGreeting(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.greetingPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating greetings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing greeting: %w", err)
	}

	b.logger.Info("custom greeting saved", "mailbox", b.extension, "bytes", len(data))
	return nil
}

// GreetingPath returns the custom greeting's path and whether one exists.
func (b *Mailbox) GreetingPath() (string, bool) {
	path := b.greetingPath()
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// HasCustomGreeting reports whether a custom greeting is stored.
func (b *Mailbox) HasCustomGreeting() bool {
	_, ok := b.GreetingPath()
	return ok
}

// DeleteGreeting removes the custom greeting. Returns false with a nil
// error when no greeting exists.
func (b *Mailbox) DeleteGreeting() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := os.Remove(b.greetingPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting greeting: %w", err)
	}

	b.logger.Info("custom greeting deleted", "mailbox", b.extension)
	return true, nil
}

// VerifyPIN checks a candidate PIN against the mailbox credential.
func (b *Mailbox) VerifyPIN(candidate string) bool {
	b.mu.Lock()
	cred := b.cred
	b.mu.Unlock()
	return cred.Verify(candidate)
}

// SetPIN validates the PIN format (4–6 digits), hashes it, and stores it
// in the credential database. The in-memory credential is replaced
// atomically. A plaintext config credential is upgraded to hashed; a
// hashed credential is re-hashed with a fresh salt. PINs are never
// written back as plaintext.
func (b *Mailbox) SetPIN(ctx context.Context, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}

	hash, salt, err := HashPIN(pin)
	if err != nil {
		return fmt.Errorf("hashing pin: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.creds.Store(ctx, b.extension, hash, salt); err != nil {
		return fmt.Errorf("storing pin credential: %w", err)
	}
	b.cred = HashedCredential(hash, salt)

	b.logger.Info("mailbox pin updated", "mailbox", b.extension)
	return nil
}
