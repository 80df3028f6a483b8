// Package cmd wires the motion_sensors subcommands onto one cobra root.
package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_sensors/internal/app"
	"github.com/relabs-tech/motion_sensors/internal/config"
)

const defaultConfigPath = "motion_config.txt"

type globalFlags struct {
	configPath string
	debug      bool
}

// NewRootCommand builds the motion_sensors command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "motion_sensors",
		Short:         "Stream device motion sensors as named event streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfigPath, "KEY=VALUE configuration file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "stream",
			Short: "Serve sensor streams over MQTT and HTTP",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.RunStreamer(cmd.Context(), config.Get())
			},
		},
		&cobra.Command{
			Use:   "console [streams...]",
			Short: "Listen to streams through the MQTT bridge and print them",
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.RunConsole(cmd.Context(), config.Get(), cmd.OutOrStdout(), args)
			},
		},
		&cobra.Command{
			Use:   "mock [streams...]",
			Short: "Print simulated streams without a broker",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Get()
				return app.RunMockConsole(cmd.Context(), cmd.OutOrStdout(), args, cfg.DefaultIntervalUs)
			},
		},
		&cobra.Command{
			Use:   "display",
			Short: "Render the configured stream on an SSD1306 display",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.RunDisplay(cmd.Context(), config.Get())
			},
		},
	)
	return root
}

// init loads the configuration and sets the log level. A missing default
// config file is not an error.
func (f *globalFlags) init(cmd *cobra.Command) error {
	path := f.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	if err := config.InitGlobal(path); err != nil {
		return err
	}

	level, err := log.ParseLevel(config.Get().LogLevel)
	if err != nil {
		return err
	}
	if f.debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}

// Execute runs the root command until it returns or the process is signalled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
