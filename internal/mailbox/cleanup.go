package mailbox

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// StartCleanupTicker runs a background goroutine that periodically
// removes messages older than the retention period. Deleted messages
// have their WAV files removed from disk. The goroutine stops when the
// provided context is cancelled. A retention of zero or less disables
// cleanup.
func StartCleanupTicker(ctx context.Context, store MessageStore, retentionDays int, interval time.Duration) {
	if retentionDays <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				paths, err := store.DeleteExpired(ctx, cutoff)
				if err != nil {
					slog.Error("voicemail retention cleanup failed", "error", err)
					continue
				}
				if len(paths) == 0 {
					continue
				}

				slog.Info("voicemail retention cleanup", "deleted", len(paths))

				for _, p := range paths {
					if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
						slog.Warn("failed to remove voicemail file", "path", p, "error", err)
					}
				}
			}
		}
	}()
}
