// Package prompts provides the voicemail IVR prompt catalog: named prompt
// keys resolved to G.711 u-law WAV files (8kHz, mono, 8-bit) suitable for
// direct RTP playback without transcoding.
//
// The embedded default prompts are extracted to the data directory on
// first boot so they can be served by the media player. Custom voice
// recordings placed in the custom/ subdirectory take precedence over the
// extracted defaults.
package prompts

import "embed"

// SystemFS holds the default system prompt audio embedded in the binary.
// Files are under system/, one per prompt key (e.g. system/enter_pin.wav).
//
//go:embed system/*.wav
var SystemFS embed.FS
