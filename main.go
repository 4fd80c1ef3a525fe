package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/kapitanov/chip8interp/internal/hal"
	"github.com/kapitanov/chip8interp/internal/runner"
	"github.com/kapitanov/chip8interp/internal/vm"
	"github.com/kapitanov/chip8interp/internal/wavrec"
	"github.com/spf13/cobra"
)

type options struct {
	verbose        bool
	cyclesPerFrame int
	skipUnknown    bool
	recordAudio    string
	quirks         vm.Quirks
}

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run a CHIP-8 program",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var opts options
	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	flags.IntVar(&opts.cyclesPerFrame, "cycles-per-frame", runner.DefaultCyclesPerFrame, "instructions executed per 1/60 s frame")
	flags.BoolVar(&opts.skipUnknown, "skip-unknown", false, "log and skip unknown opcodes instead of halting")
	flags.StringVar(&opts.recordAudio, "record-audio", "", "also record the buzzer to this WAV file")
	flags.BoolVar(&opts.quirks.WrapSprites, "wrap-sprites", false, "wrap sprite pixels around the screen edges instead of clipping")
	flags.BoolVar(&opts.quirks.LoadStoreIncrementsIndex, "load-store-quirk", false, "FX55/FX65 advance I past the last register")
	flags.BoolVar(&opts.quirks.ShiftReadsVY, "shift-quirk", false, "8XY6/8XYE shift VY instead of VX")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if opts.verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return run(ctx, args[0], opts)
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, opts options) (rerr error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to load file %q: %w", path, err)
	}

	machine := vm.New(vm.WithQuirks(opts.quirks))
	if err := machine.LoadProgram(bs); err != nil {
		return fmt.Errorf("unable to load program %q: %w", path, err)
	}

	h, err := hal.New(fmt.Sprintf("CHIP-8 - %s", filepath.Base(path)))
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer h.Shutdown()

	cfg := runner.Config{
		Display:            h,
		Input:              h,
		Sounds:             []runner.Sound{h},
		CyclesPerFrame:     opts.cyclesPerFrame,
		SkipUnknownOpcodes: opts.skipUnknown,
	}

	if opts.recordAudio != "" {
		rec, err := wavrec.New(opts.recordAudio)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil && rerr == nil {
				rerr = err
			}
		}()
		cfg.Sounds = append(cfg.Sounds, rec)
	}

	for {
		err = runner.New(machine, cfg).Run(ctx)

		switch {
		case errors.Is(err, hal.ErrQuit), errors.Is(err, context.Canceled):
			return nil

		case errors.Is(err, hal.ErrReboot):
			slog.Info("reboot")
			if err := machine.LoadProgram(bs); err != nil {
				return err
			}
			continue
		}

		slog.Error("machine halted, close the window to exit", "err", err)
		if err := h.WaitForQuit(); err != nil {
			slog.Error("failed to wait for quit", "err", err)
		}
		return err
	}
}
