package prompts

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// SystemDir returns the path to the extracted system prompts directory.
func SystemDir(dataDir string) string {
	return filepath.Join(dataDir, "prompts", "system")
}

// CustomDir returns the path to the custom (recorded/uploaded) prompts
// directory.
func CustomDir(dataDir string) string {
	return filepath.Join(dataDir, "prompts", "custom")
}

// GreetingPath returns the standard path for a mailbox's custom greeting:
// $DATA_DIR/greetings/box_<extension>.wav.
func GreetingPath(dataDir, extension string) string {
	return filepath.Join(dataDir, "greetings", fmt.Sprintf("box_%s.wav", extension))
}

// Catalog resolves prompt keys to WAV file paths under a data directory.
// Custom prompts override the extracted system defaults.
type Catalog struct {
	dataDir string
}

// NewCatalog creates a catalog rooted at the given data directory.
func NewCatalog(dataDir string) *Catalog {
	return &Catalog{dataDir: dataDir}
}

// Path returns the WAV file path for a prompt key. A custom prompt at
// custom/<key>.wav wins over the system default. The returned path is not
// guaranteed to exist for unknown keys.
func (c *Catalog) Path(key string) string {
	custom := filepath.Join(CustomDir(c.dataDir), key+".wav")
	if _, err := os.Stat(custom); err == nil {
		return custom
	}
	return filepath.Join(SystemDir(c.dataDir), key+".wav")
}

// ExtractToDataDir copies the embedded system prompts to the data
// directory so they can be served by the media player. Files that already
// exist on disk are skipped, preserving replacement voice recordings.
func ExtractToDataDir(dataDir string) error {
	sysDir := SystemDir(dataDir)
	if err := os.MkdirAll(sysDir, 0750); err != nil {
		return fmt.Errorf("creating system prompts directory: %w", err)
	}

	custDir := CustomDir(dataDir)
	if err := os.MkdirAll(custDir, 0750); err != nil {
		return fmt.Errorf("creating custom prompts directory: %w", err)
	}

	for _, key := range Keys {
		name := key + ".wav"
		dest := filepath.Join(sysDir, name)

		// Skip files that already exist on disk.
		if _, err := os.Stat(dest); err == nil {
			slog.Debug("system prompt already exists, skipping", "file", name)
			continue
		}

		data, err := fs.ReadFile(SystemFS, filepath.Join("system", name))
		if err != nil {
			return fmt.Errorf("reading embedded prompt %s: %w", name, err)
		}

		if err := os.WriteFile(dest, data, 0640); err != nil {
			return fmt.Errorf("writing prompt %s: %w", name, err)
		}

		slog.Info("extracted system prompt", "file", name, "path", dest)
	}

	return nil
}
