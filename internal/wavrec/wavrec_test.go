package wavrec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/kapitanov/chip8interp/internal/tone"
	"github.com/retroenv/retrogolib/assert"
)

func TestRecordAndDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.wav")
	rec, err := New(path)
	assert.NoError(t, err)

	assert.NoError(t, rec.Tone(true))
	assert.NoError(t, rec.Tone(false))
	assert.NoError(t, rec.Tone(true))
	assert.Equal(t, 3, rec.Frames())
	assert.NoError(t, rec.Close())

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	assert.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	assert.NoError(t, err)
	assert.Equal(t, 3*tone.SamplesPerFrame, len(buf.Data))
	assert.Equal(t, tone.SampleRate, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)

	assert.Equal(t, amplitude, buf.Data[0])
	assert.Equal(t, 0, buf.Data[tone.SamplesPerFrame])
}

func TestEmptyRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silent.wav")
	rec, err := New(path)
	assert.NoError(t, err)
	assert.NoError(t, rec.Close())

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	assert.NoError(t, dec.Err())
	assert.Equal(t, uint16(numChannels), dec.NumChans)
	assert.Equal(t, uint16(bitDepth), dec.BitDepth)
	assert.Equal(t, uint32(tone.SampleRate), dec.SampleRate)
	assert.Equal(t, 0, rec.Frames())
}

func TestNewBadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "beep.wav"))
	assert.True(t, err != nil)
}

func TestFramesAreWrittenAsTheyArrive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.wav")
	rec, err := New(path)
	assert.NoError(t, err)
	defer rec.Close()

	assert.NoError(t, rec.Tone(true))
	first, err := os.Stat(path)
	assert.NoError(t, err)

	assert.NoError(t, rec.Tone(true))
	second, err := os.Stat(path)
	assert.NoError(t, err)

	assert.True(t, first.Size() >= int64(2*tone.SamplesPerFrame))
	assert.Equal(t, first.Size()+int64(2*tone.SamplesPerFrame), second.Size())
}
