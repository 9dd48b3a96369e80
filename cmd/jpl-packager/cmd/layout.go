package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/jpl-packager/internal/config"
	"github.com/oshokin/jpl-packager/internal/domain/archive"
)

// layoutOutput is where the layout subcommand saves the file; stdout when empty.
var layoutOutput string

// layoutCmd prints the default layout as a starting point for --layout.
var layoutCmd = &cobra.Command{
	Use:          "layout",
	Short:        "Print the default archive layout in YAML.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if layoutOutput != "" {
			return config.SaveLayout(layoutOutput, archive.DefaultLayout())
		}

		data, err := config.MarshalLayout(archive.DefaultLayout())
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(data)

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	layoutCmd.Flags().StringVarP(&layoutOutput, "output", "o", "", "write the layout to this file instead of stdout")
}
