// Package tone generates the CHIP-8 buzzer as a square wave, one 60 Hz frame at a time.
package tone

const (
	SampleRate      = 44100
	Frequency       = 440
	FrameRate       = 60
	SamplesPerFrame = SampleRate / FrameRate
)

// Generator keeps the wave phase across frames so consecutive tone frames join without clicks.
type Generator struct {
	amplitude int
	period    int
	phase     int
}

func New(amplitude int) *Generator {
	return &Generator{
		amplitude: amplitude,
		period:    SampleRate / Frequency,
	}
}

// Frame fills buf with the wave when on, with silence otherwise.
func (g *Generator) Frame(buf []int, on bool) {
	if !on {
		for i := range buf {
			buf[i] = 0
		}
		g.phase = 0
		return
	}

	for i := range buf {
		if g.phase < g.period/2 {
			buf[i] = g.amplitude
		} else {
			buf[i] = -g.amplitude
		}
		g.phase = (g.phase + 1) % g.period
	}
}
