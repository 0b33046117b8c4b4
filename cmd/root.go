// Package cmd wires the slabbot CLI: the HTTP server, one-shot ask and
// search commands, and version info.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slabbot",
	Short: "slabbot - KB-grounded support answer service",
	Long: `slabbot answers support questions grounded in the product knowledge
base. It retrieves relevant articles (lexical scoring or vector similarity),
folds them into the conversation, and streams the generated answer.

Run "slabbot serve" to start the HTTP API, or "slabbot ask" for a one-shot
answer in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
