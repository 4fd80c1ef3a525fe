package tone

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestSilence(t *testing.T) {
	g := New(100)
	buf := make([]int, SamplesPerFrame)
	for i := range buf {
		buf[i] = 7
	}

	g.Frame(buf, false)

	for _, v := range buf {
		assert.Equal(t, 0, v)
	}
}

func TestSquareWave(t *testing.T) {
	g := New(100)
	buf := make([]int, g.period)

	g.Frame(buf, true)

	high, low := 0, 0
	for _, v := range buf {
		switch v {
		case 100:
			high++
		case -100:
			low++
		default:
			t.Fatalf("unexpected sample %d", v)
		}
	}
	assert.Equal(t, g.period/2, high)
	assert.Equal(t, g.period-g.period/2, low)
}

func TestPhaseCarriesAcrossFrames(t *testing.T) {
	g := New(1)
	first := make([]int, g.period/2)
	second := make([]int, 1)

	g.Frame(first, true)
	g.Frame(second, true)

	assert.Equal(t, 1, first[len(first)-1])
	assert.Equal(t, -1, second[0])
}
