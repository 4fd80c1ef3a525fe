// Package runner drives a vm.VM in real time: 60 frames per second, a fixed
// number of instructions per frame and one timer tick per frame.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kapitanov/chip8interp/internal/vm"
)

const (
	FrameRate             = 60
	DefaultCyclesPerFrame = 11
)

type Display interface {
	Draw(fb vm.Framebuffer) error
}

type Input interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
}

type Sound interface {
	Tone(on bool) error
}

type Config struct {
	Display Display
	Input   Input
	Sounds  []Sound

	CyclesPerFrame     int
	SkipUnknownOpcodes bool
}

type Runner struct {
	machine *vm.VM
	cfg     Config
	looped  bool
}

func New(machine *vm.VM, cfg Config) *Runner {
	if cfg.CyclesPerFrame <= 0 {
		cfg.CyclesPerFrame = DefaultCyclesPerFrame
	}

	return &Runner{
		machine: machine,
		cfg:     cfg,
	}
}

// Run executes frames until ctx is done or a frame fails.
// Errors returned by the input source are passed through unchanged.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / FrameRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Frame(); err != nil {
				return err
			}
		}
	}
}

// Frame runs one 1/60 s slice: input, instructions, timers, sound, display.
func (r *Runner) Frame() error {
	if r.cfg.Input != nil {
		if err := r.cfg.Input.ReadInput(r.machine.KeyDown, r.machine.KeyUp); err != nil {
			return err
		}
	}

	if err := r.runCycles(); err != nil {
		return err
	}

	r.machine.TickTimers()

	active := r.machine.SoundActive()
	for _, s := range r.cfg.Sounds {
		if err := s.Tone(active); err != nil {
			return fmt.Errorf("sound: %w", err)
		}
	}

	if r.machine.Redraw() && r.cfg.Display != nil {
		if err := r.cfg.Display.Draw(r.machine.Framebuffer()); err != nil {
			return fmt.Errorf("display: %w", err)
		}
	}

	return nil
}

// Looped reports whether the program parked itself on a jump to its own address.
func (r *Runner) Looped() bool {
	return r.looped
}

func (r *Runner) runCycles() error {
	for i := 0; i < r.cfg.CyclesPerFrame && !r.looped; i++ {
		pc := r.machine.PC()

		status, err := r.machine.Step()
		if err != nil {
			if r.cfg.SkipUnknownOpcodes && errors.Is(err, vm.ErrUnknownOpcode) {
				slog.Warn("skip unknown opcode", "err", err)
				continue
			}
			return err
		}

		if status == vm.StatusAwaitingInput {
			return nil
		}

		if r.machine.PC() == pc && r.isJump(pc) {
			slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
			r.looped = true
		}
	}

	return nil
}

func (r *Runner) isJump(addr uint16) bool {
	opcode := uint16(r.machine.Memory(addr))<<8 | uint16(r.machine.Memory(addr+1))
	op := vm.Decode(opcode).Op
	return op == vm.OpJP || op == vm.OpJPV0
}
