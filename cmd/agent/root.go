package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clipstudio/clipper-agent/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "clipper-agent",
	Short: "Local video clip cutting and posting-metrics agent",
	Long: `clipper-agent runs a local HTTP API for cutting a source video into
clips, tracking their social posting metrics, and analyzing which clip
lengths and platforms perform best.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipper-agent %s (built %s, commit %s)\n",
			config.Version, config.BuildTime, config.GitCommit)
	},
}

func init() {
	// a .env next to the binary is optional
	_ = godotenv.Load()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
