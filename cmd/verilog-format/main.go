// verilog-format installs the pinned Verible release on first use and runs
// verible-verilog-format with the arguments it was given. It has no flags of
// its own and exits with the formatter's exit status.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	verible "github.com/rtl-tools/verible-format"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := verible.LoadConfig(verible.DefaultConfigFile)
	if err != nil {
		return err
	}

	// The formatter owns stdout and stderr; stay quiet unless asked.
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger, err := verible.NewLogger("verilog-format", level, os.Stderr)
	if err != nil {
		return err
	}

	provisioner, err := verible.New(
		verible.WithRelease(cfg.Release),
		verible.WithLogger(logger),
		verible.WithProgress(os.Stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create provisioner: %w", err)
	}

	// Interrupts cancel the download and stop killing this process, so a
	// running formatter gets to handle the terminal's signal itself.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	execPath, err := provisioner.Ensure(ctx)
	if err != nil {
		return err
	}

	return verible.Exec(context.Background(), execPath, args)
}
