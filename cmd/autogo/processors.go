package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autogo-dev/autogo/processor"
)

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List the registered annotation processors",
	Long: `List the names of every registered annotation processor, one per line.

These are the names accepted by gen's --processor flag.`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range processor.ProcessorNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}
