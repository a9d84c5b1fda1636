package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model class and weights into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		classPath, weightsPath, err := a.acquireArtifacts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch artifacts: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\t%s\n", a.cfg.ClassFile(), classPath)
		fmt.Fprintf(out, "%s\t%s\n", a.cfg.ModelFile(), weightsPath)
		return nil
	},
}
