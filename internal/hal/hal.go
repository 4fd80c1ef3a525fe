package hal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/kapitanov/chip8interp/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	WindowWidth  = 1024
	WindowHeight = 512
)

// HAL is the SDL host: it renders the framebuffer, maps the keyboard onto
// the hex keypad and plays the buzzer.
type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	beeper *beeper
}

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// New opens the window, renderer, texture and audio device. On failure
// everything opened so far is released again.
func New(title string) (_ *HAL, rerr error) {
	if err := sdl.Init(sdl.INIT_EVERYTHING); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	hal := &HAL{
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
	}
	defer func() {
		if rerr != nil {
			hal.Shutdown()
		}
	}()

	var err error
	hal.window, err = sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, WindowWidth, WindowHeight, sdl.WINDOW_SHOWN|sdl.WINDOW_UTILITY)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window")
	hal.window.Show()

	hal.renderer, err = sdl.CreateRenderer(hal.window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	err = hal.renderer.SetLogicalSize(WindowWidth, WindowHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	hal.texture, err = hal.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	hal.beeper, err = newBeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to open sdl audio device: %w", err)
	}
	slog.Debug("hal: open audio device")

	return hal, nil
}

// Shutdown releases whatever New managed to open and quits SDL.
func (hal *HAL) Shutdown() {
	if hal.beeper != nil {
		hal.beeper.close()
	}

	if hal.texture != nil {
		if err := hal.texture.Destroy(); err != nil {
			slog.Error("failed to destroy sdl texture", "err", err)
		}
	}

	if hal.renderer != nil {
		if err := hal.renderer.Destroy(); err != nil {
			slog.Error("failed to destroy sdl renderer", "err", err)
		}
	}

	if hal.window != nil {
		if err := hal.window.Destroy(); err != nil {
			slog.Error("failed to destroy sdl window", "err", err)
		}
	}

	sdl.Quit()
}

// ReadInput drains pending SDL events into the key latch callbacks.
// Backspace requests a reboot, closing the window requests quit.
func (hal *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return ErrQuit

		case sdl.KEYDOWN:
			ke := e.(*sdl.KeyboardEvent)
			if ke.Keysym.Scancode == sdl.SCANCODE_BACKSPACE {
				slog.Debug("hal: reboot requested")
				return ErrReboot
			}
			if key, ok := keypadKey(ke.Keysym.Scancode); ok && ke.Repeat == 0 {
				keyDown(key)
			}

		case sdl.KEYUP:
			ke := e.(*sdl.KeyboardEvent)
			if key, ok := keypadKey(ke.Keysym.Scancode); ok {
				keyUp(key)
			}
		}
	}

	return nil
}

const (
	bgColor = uint32(0x000000)
	fgColor = uint32(0xbea700)
)

// Draw renders a framebuffer snapshot, scaled to the window.
func (hal *HAL) Draw(gfx vm.Framebuffer) error {
	for i, pixel := range gfx {
		if pixel != 0 {
			hal.backBuffer[i] = fgColor
		} else {
			hal.backBuffer[i] = bgColor
		}
	}

	backBufferPtr := unsafe.Pointer(&hal.backBuffer[0])
	if err := hal.texture.Update(nil, backBufferPtr, hal.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := hal.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := hal.renderer.Copy(hal.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	hal.renderer.Present()
	return nil
}

// Tone queues one frame of buzzer output.
func (hal *HAL) Tone(on bool) error {
	return hal.beeper.tone(on)
}

// WaitForQuit keeps the last frame on screen until the window is closed.
func (hal *HAL) WaitForQuit() error {
	const pollInterval = 20 * time.Millisecond

	for {
		for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
			if e.GetType() == sdl.QUIT {
				return nil
			}
		}
		time.Sleep(pollInterval)
	}
}
