package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moviescript/moviescript-web/internal/config"
)

// exitCode ends the process with a status after output was already written.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

var rootCmd = &cobra.Command{
	Use:           "moviescript",
	Short:         "Movie metadata prediction web front end",
	Long:          "Serves a form that collects movie metadata, validates it and forwards it to a pre-trained prediction model fetched from a model hub.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "moviescript %s (commit %s, built %s)\n",
			config.Version, config.GitCommit, config.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, fetchCmd, predictCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
