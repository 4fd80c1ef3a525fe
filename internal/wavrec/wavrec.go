// Package wavrec records the buzzer to a WAV file. Each frame is encoded as
// it arrives; Close patches the header sizes.
package wavrec

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/kapitanov/chip8interp/internal/tone"
)

const (
	bitDepth    = 16
	amplitude   = 8000
	pcmFormat   = 1
	numChannels = 1
)

type Recorder struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	gen    *tone.Generator
	buf    *audio.IntBuffer
	frames int
}

// New creates the file at path and writes the WAV header, so a recording
// closed before any frame is still a valid empty file.
func New(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavrec: %w", err)
	}

	r := &Recorder{
		path: path,
		file: f,
		enc:  wav.NewEncoder(f, tone.SampleRate, bitDepth, numChannels, pcmFormat),
		gen:  tone.New(amplitude),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  tone.SampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}

	if err := r.enc.Write(r.buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wavrec: write header: %w", err)
	}

	r.buf.Data = make([]int, tone.SamplesPerFrame)
	return r, nil
}

// Tone encodes one frame of buzzer output.
func (r *Recorder) Tone(on bool) error {
	r.gen.Frame(r.buf.Data, on)
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("wavrec: write frame: %w", err)
	}

	r.frames++
	return nil
}

// Frames returns the number of frames recorded so far.
func (r *Recorder) Frames() int {
	return r.frames
}

func (r *Recorder) Close() (rerr error) {
	defer func() {
		if err := r.file.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("wavrec: %w", err)
		}
	}()

	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("wavrec: finish %q: %w", r.path, err)
	}

	slog.Info("wavrec: audio written", "path", r.path, "frames", r.frames)
	return nil
}
