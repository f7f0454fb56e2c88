package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"astrocal/internal/config"
	"astrocal/internal/version"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath
	envFile    = ""
)

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "astrocal",
		Short: "astrocal calibrates optical distortion from shifted pinhole-mask frames",
		Long: `astrocal calibrates optical distortion from shifted pinhole-mask frames.

A calibration mask with a hexagonal grid of pinholes is imaged at several
known shifts. astrocal centroids every pinhole in every frame and fits the
distortion field jointly with the unknown pinhole position errors.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVarP(&configPath, "config", "c", config.DefaultPath, "configuration file (.yaml, .yml or .json)")
	globalFlags.StringVar(&envFile, "env-file", "", "load ASTROCAL_* variables from this file instead of ./.env")

	cmd.AddCommand(
		NewRunCommand(),
		NewEvalCommand(),
		NewPlotCommand(),
		NewVersionCommand(),
	)

	return cmd
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})

	return nil
}

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}
