package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:          "studybuddy",
	Short:        "Study companion: ask questions about your own study material",
	SilenceUsage: true,
	Long: `Study Buddy indexes text, web pages and PDFs you provide and answers
questions grounded in them. Run "serve" for the HTTP API, "ask" for a
one-shot answer or "chat" for an interactive terminal session.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config file (default ./studybuddy.yaml)")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
