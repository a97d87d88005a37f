// Package audio provides G.711 WAV framing helpers for the voicemail
// system: writing headers around raw u-law/a-law payloads and parsing
// headers of stored files. All audio is 8 kHz, mono, 8-bit.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// FormatPCMU is the WAV audio format code for G.711 u-law.
	FormatPCMU = 7
	// FormatPCMA is the WAV audio format code for G.711 a-law.
	FormatPCMA = 6

	// SampleRate is the G.711 sample rate. One byte per sample.
	SampleRate = 8000

	// HeaderSize is the size of the WAV header this package writes.
	HeaderSize = 44

	// silencePCMU is the u-law encoding of a zero sample.
	silencePCMU = 0xFF
	// silencePCMA is the a-law encoding of a zero sample.
	silencePCMA = 0xD5
)

// Header holds the fields parsed from a WAV file header.
type Header struct {
	AudioFormat   uint16 // 6 = a-law, 7 = u-law
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32 // size of the "data" chunk in bytes
}

// Duration returns the playback duration of the audio data.
func (h *Header) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(h.DataSize) * time.Second / time.Duration(h.ByteRate)
}

// WriteHeader writes a standard 44-byte WAV header for G.711 audio.
// format is the WAV audio format code (6=a-law, 7=u-law) and dataSize is
// the size of the audio data section in bytes.
func WriteHeader(w io.Writer, format uint16, dataSize uint32) error {
	if format != FormatPCMU && format != FormatPCMA {
		return fmt.Errorf("unsupported wav format code %d", format)
	}

	var hdr [HeaderSize]byte

	// RIFF header.
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], HeaderSize-8+dataSize)
	copy(hdr[8:12], "WAVE")

	// fmt sub-chunk.
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // sub-chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], format)
	binary.LittleEndian.PutUint16(hdr[22:24], 1)          // mono
	binary.LittleEndian.PutUint32(hdr[24:28], SampleRate) // sample rate
	binary.LittleEndian.PutUint32(hdr[28:32], SampleRate) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 1)          // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 8)          // bits per sample

	// data sub-chunk.
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	_, err := w.Write(hdr[:])
	return err
}

// EncodeWAV wraps a raw G.711 payload in a WAV container.
func EncodeWAV(format uint16, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(payload))
	if err := WriteHeader(&buf, format, uint32(len(payload))); err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Silence returns a raw G.711 payload of encoded silence with the given
// duration, rounded down to whole samples.
func Silence(format uint16, d time.Duration) []byte {
	n := int(d * SampleRate / time.Second)
	if n <= 0 {
		return nil
	}
	b := silencePCMU
	if format == FormatPCMA {
		b = silencePCMA
	}
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(b)
	}
	return payload
}

// ParseHeader reads and validates a WAV header, returning the format
// information and positioning the reader at the start of audio data.
func ParseHeader(r io.ReadSeeker) (*Header, error) {
	// RIFF header: "RIFF" + size + "WAVE"
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("reading riff header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" {
		return nil, errors.New("not a RIFF file")
	}
	if string(riffHeader[8:12]) != "WAVE" {
		return nil, errors.New("not a WAVE file")
	}

	// Walk chunks to find "fmt " and "data".
	hdr := &Header{}
	foundFmt := false
	foundData := false

	for !foundData {
		var chunkID [4]byte
		var chunkSize uint32

		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("reading chunk id: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, fmt.Errorf("reading chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.AudioFormat); err != nil {
				return nil, fmt.Errorf("reading audio format: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.NumChannels); err != nil {
				return nil, fmt.Errorf("reading num channels: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.SampleRate); err != nil {
				return nil, fmt.Errorf("reading sample rate: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.ByteRate); err != nil {
				return nil, fmt.Errorf("reading byte rate: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.BlockAlign); err != nil {
				return nil, fmt.Errorf("reading block align: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &hdr.BitsPerSample); err != nil {
				return nil, fmt.Errorf("reading bits per sample: %w", err)
			}
			// Skip any extra fmt bytes.
			if chunkSize > 16 {
				if _, err := r.Seek(int64(chunkSize-16), io.SeekCurrent); err != nil {
					return nil, fmt.Errorf("skipping extra fmt data: %w", err)
				}
			}
			foundFmt = true

		case "data":
			hdr.DataSize = chunkSize
			foundData = true

		default:
			// Skip unknown chunks.
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skipping chunk %q: %w", string(chunkID[:]), err)
			}
		}
	}

	if !foundFmt {
		return nil, errors.New("wav file has no fmt chunk")
	}
	if !foundData {
		return nil, errors.New("wav file has no data chunk")
	}

	return hdr, nil
}

// ValidateFile opens a WAV file and verifies it is playable G.711 audio
// (u-law or a-law, mono, 8 kHz). Returns the parsed header.
func ValidateFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	hdr, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if hdr.AudioFormat != FormatPCMU && hdr.AudioFormat != FormatPCMA {
		return nil, fmt.Errorf("%s: unsupported audio format %d, want G.711", path, hdr.AudioFormat)
	}
	if hdr.NumChannels != 1 {
		return nil, fmt.Errorf("%s: %d channels, want mono", path, hdr.NumChannels)
	}
	if hdr.SampleRate != SampleRate {
		return nil, fmt.Errorf("%s: sample rate %d, want %d", path, hdr.SampleRate, SampleRate)
	}

	return hdr, nil
}
