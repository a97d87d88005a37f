package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowpbx/voicemail/internal/mailbox"
)

// CredentialRepository implements mailbox.CredentialSource on SQLite.
// This is the "credential database" source for mailbox PINs; legacy
// plaintext PINs come from config instead and never touch this table.
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a credential repository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Lookup returns the stored credential for an extension, or an unset
// credential if the extension has no database entry.
func (r *CredentialRepository) Lookup(ctx context.Context, extension string) (mailbox.Credential, error) {
	var hash, salt []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT pin_hash, pin_salt FROM voicemail_credentials WHERE extension = ?`,
		extension).Scan(&hash, &salt)
	if err == sql.ErrNoRows {
		return mailbox.Credential{}, nil
	}
	if err != nil {
		return mailbox.Credential{}, fmt.Errorf("querying credential: %w", err)
	}
	return mailbox.HashedCredential(hash, salt), nil
}

// Store upserts the hashed credential for an extension.
func (r *CredentialRepository) Store(ctx context.Context, extension string, hash, salt []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO voicemail_credentials (extension, pin_hash, pin_salt, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(extension) DO UPDATE SET
		 pin_hash = excluded.pin_hash, pin_salt = excluded.pin_salt,
		 updated_at = datetime('now')`,
		extension, hash, salt)
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// Ensure the repository satisfies the mailbox contract.
var _ mailbox.CredentialSource = (*CredentialRepository)(nil)
