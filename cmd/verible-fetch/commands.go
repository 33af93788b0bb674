package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	verible "github.com/rtl-tools/verible-format"
)

type options struct {
	configPath string
	dir        string
	logLevel   string
	progress   bool
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.configPath, "config", verible.DefaultConfigFile, "path to the YAML config file")
	flags.StringVar(&o.dir, "dir", "", "installation directory (overrides the config file)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default info)")
	flags.BoolVar(&o.progress, "progress", true, "show a progress bar while downloading")
}

func (o *options) provisioner() (*verible.Provisioner, error) {
	cfg, err := verible.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dir != "" {
		cfg.Release.Dir = o.dir
	}

	level := o.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if level == "" {
		level = "info"
	}
	logger, err := verible.NewLogger("verible-fetch", level, os.Stderr)
	if err != nil {
		return nil, err
	}

	opts := []verible.Option{
		verible.WithRelease(cfg.Release),
		verible.WithLogger(logger),
	}
	if o.progress {
		opts = append(opts, verible.WithProgress(os.Stderr))
	}
	return verible.New(opts...)
}

func newRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "verible-fetch",
		Short:         "Manage the local Verible installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.addFlags(root.PersistentFlags())

	root.AddCommand(
		newEnsureCommand(o),
		newPathCommand(o),
		newCleanCommand(o),
		newVersionCommand(o),
	)
	return root
}

func newEnsureCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Download and install Verible if missing or stale, then print the executable path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.provisioner()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			execPath, err := p.Ensure(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), execPath)
			return nil
		},
	}
}

func newPathCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the executable is installed, without checking it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.provisioner()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ExecutablePath())
			return nil
		},
	}
}

func newCleanCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.provisioner()
			if err != nil {
				return err
			}
			return p.Clean(cmd.Context())
		},
	}
}

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pinned release tag and download URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.provisioner()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", p.Version(), p.URL())
			return nil
		},
	}
}
