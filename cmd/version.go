package main

import (
	"fmt"

	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ssim version %s (kernel backend: %s)\n", version, ssim.ActiveBackend)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
