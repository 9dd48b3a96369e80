package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/jpl-packager/internal/logger"
	"github.com/oshokin/jpl-packager/internal/service/packager"
	"github.com/oshokin/jpl-packager/internal/version"
)

var (
	// layoutPath points to an optional YAML layout file.
	layoutPath string
	// atomic enables in-memory assembly and an atomic swap.
	atomic bool
	// allowMissing tolerates a missing previous archive.
	allowMissing bool
	// hostProcess is the plugin host executable to warn about.
	hostProcess string
	// logLevel is the minimum level of log messages.
	logLevel string

	// rootCmd represents the base command that builds the archive.
	rootCmd = &cobra.Command{
		Use:   "jpl-packager [project-dir] [target-dir] [name]",
		Short: "Package a compiled plugin into a .jpl archive.",
		Long: `Post-build step that bundles a Jamcast plugin for distribution.

Deletes <project-dir><name>.jpl, then creates it again as a deflate-compressed
archive holding, in this order:
  <target-dir><name>.dll      as <name>.dll
  <target-dir>GoogleMusic.dll as GoogleMusic.dll
  <target-dir>plugin.xml      as plugin.xml
  <project-dir>LICENSE        as LICENSE

Paths are joined by plain concatenation, so directories must end with a
separator. Trailing spaces and dots are stripped from both directories, which
allows the usual "$(ProjectDir)." form in build events.

A missing previous archive is an error unless --allow-missing is given.`,
		Args:              cobra.ExactArgs(3),
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := packager.Run(ctx, packagerOptions(args))

			return err
		},
	}
)

// Execute runs the jpl-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// packagerOptions maps positional arguments and flags onto packager options.
func packagerOptions(args []string) *packager.Options {
	return &packager.Options{
		ProjectDir:   args[0],
		TargetDir:    args[1],
		Name:         args[2],
		LayoutPath:   layoutPath,
		Atomic:       atomic,
		AllowMissing: allowMissing,
		HostProcess:  hostProcess,
	}
}

// applyLogLevel configures the global logger from --log-level.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&layoutPath, "layout", "l", "", "path to a YAML layout replacing the default entries")

	rootCmd.Flags().BoolVar(&atomic, "atomic", false, "assemble in memory and replace the archive only when complete")
	rootCmd.Flags().BoolVar(&allowMissing, "allow-missing", false, "do not fail when there is no previous archive")
	rootCmd.Flags().StringVar(&hostProcess, "host-process", "", "warn if this executable (e.g. Jamcast.exe) is running")

	rootCmd.AddCommand(verifyCmd, layoutCmd)
}
