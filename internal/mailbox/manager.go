package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager hands out Mailbox instances, creating them lazily on first
// access. A mailbox lives until process shutdown; concurrent sessions for
// the same extension share one instance.
type Manager struct {
	store   MessageStore
	creds   CredentialSource
	dataDir string
	logger  *slog.Logger

	// configPINs holds legacy plaintext PINs keyed by extension number.
	// Used only when the credential database has no entry.
	configPINs map[string]string

	mu    sync.Mutex
	boxes map[string]*Mailbox
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithConfigPINs supplies legacy plaintext PINs from configuration. The
// credential database takes precedence for extensions present in both.
func WithConfigPINs(pins map[string]string) ManagerOption {
	return func(m *Manager) {
		m.configPINs = pins
	}
}

// NewManager creates a mailbox manager backed by the given stores.
func NewManager(store MessageStore, creds CredentialSource, dataDir string, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		creds:   creds,
		dataDir: dataDir,
		logger:  logger.With("subsystem", "mailbox"),
		boxes:   make(map[string]*Mailbox),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mailbox returns the mailbox for an extension, creating it on first
// access. The PIN credential is resolved once at construction: the
// credential database wins, then legacy plaintext config, else unset
// (which fails every verification).
func (m *Manager) Mailbox(ctx context.Context, extension string) (*Mailbox, error) {
	if extension == "" {
		return nil, fmt.Errorf("empty extension number")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if box, ok := m.boxes[extension]; ok {
		return box, nil
	}

	cred, err := m.resolveCredential(ctx, extension)
	if err != nil {
		return nil, fmt.Errorf("resolving credential for %s: %w", extension, err)
	}

	box := &Mailbox{
		extension: extension,
		store:     m.store,
		creds:     m.creds,
		dataDir:   m.dataDir,
		logger:    m.logger.With("mailbox", extension),
		nowFunc:   time.Now,
		cred:      cred,
	}
	m.boxes[extension] = box

	m.logger.Debug("mailbox created",
		"mailbox", extension,
		"credential_set", cred.IsSet(),
	)
	return box, nil
}

// resolveCredential picks the credential source for an extension.
func (m *Manager) resolveCredential(ctx context.Context, extension string) (Credential, error) {
	cred, err := m.creds.Lookup(ctx, extension)
	if err != nil {
		return Credential{}, err
	}
	if cred.IsSet() {
		return cred, nil
	}

	if pin, ok := m.configPINs[extension]; ok {
		m.logger.Warn("using legacy plaintext pin from config", "mailbox", extension)
		return PlaintextCredential(pin), nil
	}

	return Credential{}, nil
}
