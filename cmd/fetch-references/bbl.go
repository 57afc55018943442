package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var bblCmd = &cobra.Command{
	Use:   "bbl <file>",
	Short: "Resolve the citations of a .bbl file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		res, err := resolver.Resolve(cmd.Context(), string(content))
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		return writeResolution(cmd.OutOrStdout(), res)
	},
}
