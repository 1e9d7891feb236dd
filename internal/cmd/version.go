package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/postsmith/postsmith/internal/config"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build and dependency details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s %s\n", config.AppName, versionInfo.Version)
		if !extended {
			return nil
		}

		fmt.Printf("Commit: %s\n", versionInfo.Commit)
		fmt.Printf("Built: %s\n", versionInfo.BuildDate)
		fmt.Printf("Go: %s\n", runtime.Version())

		if info, ok := debug.ReadBuildInfo(); ok {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/fulmenhq/gofulmen" {
					fmt.Printf("\nGofulmen: %s\n", dep.Version)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
