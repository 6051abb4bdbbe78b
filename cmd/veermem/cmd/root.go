// Package cmd provides the command-line interface of the veermem demo
// harness.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "veermem",
	Short: "veermem exercises the memory translation core of the simulator.",
	Long: `veermem sets up a demo hart with a backing memory, physical memory ` +
		`attributes, and an MMU, then drives translations through it. It is a ` +
		`harness for poking at the core; the core itself takes no command line ` +
		`input.`,
}

// Execute loads optional settings and runs the root command. Child
// commands register themselves in their init functions.
func Execute() {
	// Optional overrides such as VEERMEM_TRACE_DB come from a .env file
	// in the current working directory. A missing file is fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
