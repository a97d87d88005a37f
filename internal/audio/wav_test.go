package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		format uint16
	}{
		{"ulaw", FormatPCMU},
		{"alaw", FormatPCMA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := Silence(tt.format, time.Second)
			if len(payload) != SampleRate {
				t.Fatalf("payload = %d bytes, want %d", len(payload), SampleRate)
			}

			data, err := EncodeWAV(tt.format, payload)
			if err != nil {
				t.Fatalf("EncodeWAV: %v", err)
			}
			if len(data) != HeaderSize+len(payload) {
				t.Fatalf("encoded size = %d, want %d", len(data), HeaderSize+len(payload))
			}

			hdr, err := ParseHeader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("ParseHeader: %v", err)
			}
			if hdr.AudioFormat != tt.format {
				t.Errorf("AudioFormat = %d, want %d", hdr.AudioFormat, tt.format)
			}
			if hdr.NumChannels != 1 {
				t.Errorf("NumChannels = %d, want 1", hdr.NumChannels)
			}
			if hdr.SampleRate != SampleRate {
				t.Errorf("SampleRate = %d, want %d", hdr.SampleRate, SampleRate)
			}
			if hdr.BitsPerSample != 8 {
				t.Errorf("BitsPerSample = %d, want 8", hdr.BitsPerSample)
			}
			if hdr.DataSize != uint32(len(payload)) {
				t.Errorf("DataSize = %d, want %d", hdr.DataSize, len(payload))
			}
			if hdr.Duration() != time.Second {
				t.Errorf("Duration = %v, want 1s", hdr.Duration())
			}
		})
	}
}

func TestWriteHeaderRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, 1, 100); err == nil {
		t.Error("PCM format code accepted, want error")
	}
}

func TestSilenceBytes(t *testing.T) {
	u := Silence(FormatPCMU, 10*time.Millisecond)
	if len(u) != 80 {
		t.Fatalf("ulaw silence = %d bytes, want 80", len(u))
	}
	for _, b := range u {
		if b != 0xFF {
			t.Fatalf("ulaw silence byte = %#x, want 0xFF", b)
		}
	}

	a := Silence(FormatPCMA, 10*time.Millisecond)
	for _, b := range a {
		if b != 0xD5 {
			t.Fatalf("alaw silence byte = %#x, want 0xD5", b)
		}
	}

	if Silence(FormatPCMU, 0) != nil {
		t.Error("zero duration should yield nil payload")
	}
}

func TestParseHeaderSkipsUnknownChunks(t *testing.T) {
	// Some recorders insert a LIST chunk between fmt and data.
	payload := Silence(FormatPCMU, 100*time.Millisecond)
	data, err := EncodeWAV(FormatPCMU, payload)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	buf.Write(data[:36]) // RIFF + fmt chunks
	buf.WriteString("LIST")
	buf.Write([]byte{4, 0, 0, 0})
	buf.WriteString("INFO")
	buf.Write(data[36:]) // data chunk

	hdr, err := ParseHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.DataSize != uint32(len(payload)) {
		t.Errorf("DataSize = %d, want %d", hdr.DataSize, len(payload))
	}
}

func TestParseHeaderRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte("x"), 64)},
		{"riff but not wave", append([]byte("RIFF\x00\x00\x00\x00JUNK"), make([]byte, 32)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHeader(bytes.NewReader(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.wav")
	data, err := EncodeWAV(FormatPCMU, Silence(FormatPCMU, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, data, 0640); err != nil {
		t.Fatal(err)
	}

	hdr, err := ValidateFile(good)
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
	if hdr.AudioFormat != FormatPCMU {
		t.Errorf("AudioFormat = %d, want %d", hdr.AudioFormat, FormatPCMU)
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav"), 0640); err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateFile(bad); err == nil {
		t.Error("malformed file accepted")
	}

	if _, err := ValidateFile(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("missing file accepted")
	}
}
