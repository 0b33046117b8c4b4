package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slabbot/slabbot/internal/relay"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and stream the answer to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, question string) error {
	a, err := buildApp()
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	messages := []relay.Message{{Role: "user", Content: question}}
	err = a.service.Answer(cmd.Context(), messages, func(text string) {
		fmt.Fprint(os.Stdout, text)
	})
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	fmt.Fprintln(os.Stdout)
	return nil
}
