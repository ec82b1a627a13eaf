package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files that are not readable PCM WAV
var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// Clip is decoded mono audio
type Clip struct {
	Samples    []float32
	SampleRate int
	// SourceChannels is the channel count before downmixing
	SourceChannels int
}

// DecodeWAV reads a PCM WAV stream into normalized mono samples
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("failed to decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	return Clip{
		Samples:        Normalize(buf.Data, int(dec.BitDepth), channels),
		SampleRate:     int(dec.SampleRate),
		SourceChannels: channels,
	}, nil
}

// ReadWAVFile decodes the WAV file at path
func ReadWAVFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// EncodeWAV writes samples as 16-bit mono PCM
func EncodeWAV(w io.WriteSeeker, samples []float32, rate int) error {
	enc := wav.NewEncoder(w, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  rate,
		},
		Data:           ToInt16(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("failed to write wav: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile creates path and writes samples into it
func WriteWAVFile(path string, samples []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeWAV(f, samples, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAVBytes renders samples as an in-memory WAV file. The encoder
// needs to seek back to patch the header, so it goes through a temp file.
func EncodeWAVBytes(samples []float32, rate int) ([]byte, error) {
	f, err := os.CreateTemp("", "classtranscribe-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := EncodeWAV(f, samples, rate); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp file: %w", err)
	}
	return io.ReadAll(f)
}
