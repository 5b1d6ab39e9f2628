package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(versionInfo)
		}
		_, err := fmt.Fprintf(out, "%s %s (commit %s, built %s, %s %s/%s)\n",
			appName, versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
}
