package hal

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// New hands a half-built HAL to Shutdown when a later step fails.
func TestShutdownHalfBuilt(t *testing.T) {
	hal := &HAL{}
	hal.Shutdown()

	assert.True(t, hal.window == nil)
	assert.True(t, hal.beeper == nil)
}
