package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	// Blank imports register the built-in processors.
	_ "github.com/autogo-dev/autogo/factory"
	_ "github.com/autogo-dev/autogo/service"
	_ "github.com/autogo-dev/autogo/value"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autogo",
	Short: "Annotation-driven code generation for Go",
	Long: `autogo runs annotation processors over Go packages.

Annotations are structured doc comments on types, fields, functions, and
other declarations. Processors inspect them through the type system and
generate code alongside the annotated sources: value types gain
constructors, builders, and equality; factory functions are generated
from annotated providers; services register their implementations for
runtime discovery.

Available commands:
  gen        - Run annotation processors and write generated files
  processors - List the registered processors
  version    - Show version information

Examples:
  autogo gen ./...                  # Process the current module
  autogo gen --dry-run ./...        # Show what would be generated
  autogo processors                 # List available processors`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: autogo.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable progress logging")

	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(processorsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Exit code 1 means annotation diagnostics were reported; those are already
// on stderr in compiler format. Exit code 2 means the run itself failed:
// packages that could not be loaded, outputs that could not be written, or
// bad command usage.
func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errReported) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
