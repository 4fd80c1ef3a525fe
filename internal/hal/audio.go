package hal

import (
	"log/slog"

	"github.com/kapitanov/chip8interp/internal/tone"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	beeperAmplitude = 24

	// Frames of audio allowed to sit in the device queue before new ones are dropped.
	maxQueuedFrames = 4
)

// beeper feeds the SDL audio queue one 60 Hz frame at a time.
type beeper struct {
	id      sdl.AudioDeviceID
	silence uint8
	gen     *tone.Generator
	samples []int
	buffer  []uint8
}

func newBeeper() (*beeper, error) {
	spec := &sdl.AudioSpec{
		Freq:     tone.SampleRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  512,
	}

	var actual sdl.AudioSpec
	id, err := sdl.OpenAudioDevice("", false, spec, &actual, 0)
	if err != nil {
		return nil, err
	}

	sdl.PauseAudioDevice(id, false)

	return &beeper{
		id:      id,
		silence: actual.Silence,
		gen:     tone.New(beeperAmplitude),
		samples: make([]int, tone.SamplesPerFrame),
		buffer:  make([]uint8, tone.SamplesPerFrame),
	}, nil
}

func (b *beeper) tone(on bool) error {
	if sdl.GetQueuedAudioSize(b.id) > uint32(maxQueuedFrames*len(b.buffer)) {
		slog.Debug("hal: audio queue full, dropping frame")
		return nil
	}

	b.gen.Frame(b.samples, on)
	for i, v := range b.samples {
		b.buffer[i] = uint8(int(b.silence) + v)
	}

	return sdl.QueueAudio(b.id, b.buffer)
}

func (b *beeper) close() {
	sdl.ClearQueuedAudio(b.id)
	sdl.CloseAudioDevice(b.id)
}
