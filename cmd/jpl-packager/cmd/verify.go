package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/jpl-packager/internal/service/verifier"
)

// verifyCmd checks a built archive against its source files.
var verifyCmd = &cobra.Command{
	Use:   "verify [project-dir] [target-dir] [name]",
	Short: "Check that a .jpl archive matches its source files.",
	Long: `Opens <project-dir><name>.jpl and checks that it holds exactly the layout's
entries, in order, each byte-identical to its source file. Prints a table and
exits with a non-zero status on any difference.`,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := verifier.Run(cmd.Context(), packagerOptions(args), cmd.OutOrStdout())

		return err
	},
}
