// Command gen creates the default system prompt audio as G.711 u-law WAV
// files. These are silence-filled placeholder files in the correct format
// for RTP playback. Replace with real voice recordings for production use.
//
// Usage: go run ./internal/prompts/gen
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowpbx/voicemail/internal/audio"
	"github.com/flowpbx/voicemail/internal/prompts"
)

// promptDurations overrides the default placeholder length for prompts
// that speak longer menus.
var promptDurations = map[string]time.Duration{
	prompts.MainMenu:        3 * time.Second,
	prompts.OptionsMenu:     3 * time.Second,
	prompts.MessageMenu:     3 * time.Second,
	prompts.DefaultGreeting: 3 * time.Second,
}

const defaultDuration = 200 * time.Millisecond

func main() {
	dir := filepath.Join("internal", "prompts", "system")
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, key := range prompts.Keys {
		d := defaultDuration
		if override, ok := promptDurations[key]; ok {
			d = override
		}

		data, err := audio.EncodeWAV(audio.FormatPCMU, audio.Silence(audio.FormatPCMU, d))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error encoding %s: %v\n", key, err)
			os.Exit(1)
		}

		path := filepath.Join(dir, key+".wav")
		if err := os.WriteFile(path, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("created %s (%d bytes, %s silence)\n", path, len(data), d)
	}
}
