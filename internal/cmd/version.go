package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/appid"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := appid.Get()
		out := cmd.OutOrStdout()

		if !extended {
			_, err := fmt.Fprintf(out, "%s %s\n", identity.BinaryName, versionInfo.Version)
			return err
		}

		fmt.Fprintf(out, "%s %s\n", identity.BinaryName, versionInfo.Version)
		fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go: %s\n", runtime.Version())
		fmt.Fprintln(out)

		version := crucible.GetVersion()
		fmt.Fprintf(out, "Gofulmen: %s\n", version.Gofulmen)
		_, err := fmt.Fprintf(out, "Crucible: %s\n", version.Crucible)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
