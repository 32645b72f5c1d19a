package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/autogo-dev/autogo/processor"
)

var (
	genOutput       string
	genProcessors   []string
	genIncludeTests bool
	genDryRun       bool
)

// errReported signals that error diagnostics were already printed and only
// the exit code remains to be decided.
var errReported = errors.New("errors were reported")

var genCmd = &cobra.Command{
	Use:   "gen [packages...]",
	Short: "Run annotation processors over the given packages",
	Long: `Run annotation processors over the given packages and write the
generated files.

Packages are named by import path or by pattern, in the same syntax the go
tool accepts. By default every registered processor runs and generated files
are written next to the sources of the package they were generated for;
--output redirects them under <root>/<import path> instead.

Settings may also come from AUTOGO_* environment variables or from an
autogo.yaml file in the working directory (keys: output, processors,
include_tests, verbose). Flags win over the environment, which wins over
the file.

Examples:
  autogo gen ./...                          # Process the current module
  autogo gen github.com/acme/shapes         # Process one package
  autogo gen --processor value ./...        # Run only the value processor
  autogo gen --output gen ./...             # Write under gen/<import path>
  autogo gen --dry-run ./...                # Report without writing files`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGen,
}

func init() {
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Root directory for generated files (default: each package's own directory)")
	genCmd.Flags().StringSliceVarP(&genProcessors, "processor", "p", nil, "Processors to run, by name (default: all registered)")
	genCmd.Flags().BoolVar(&genIncludeTests, "include-tests", false, "Process annotations in test files as well")
	genCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Report what would be generated without writing files")
}

func runGen(cmd *cobra.Command, args []string) error {
	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if v.GetBool("verbose") {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "initializing logger")
		}
		defer zl.Sync()
		processor.SetLogger(zl.Sugar())
	}

	procs, err := resolveProcessors(v.GetStringSlice("processors"))
	if err != nil {
		return err
	}

	output := v.GetString("output")
	outputFactory := processor.DefaultOutputFactory(output)
	if genDryRun {
		outputFactory = dryRunOutputFactory(cmd.OutOrStdout(), output)
	}

	rep := processor.NewReporter()
	cfg := processor.Config{
		Packages:      args,
		IncludeTests:  v.GetBool("include_tests"),
		Processors:    procs,
		OutputFactory: outputFactory,
		Reporter:      rep,
	}
	execErr := cfg.Execute()
	rep.Print(cmd.ErrOrStderr())
	if execErr != nil {
		return execErr
	}
	if rep.HasErrors() {
		return errReported
	}
	return nil
}

// loadConfig resolves gen settings from flags, AUTOGO_* environment
// variables, and an optional config file, in that order of precedence.
// Dry-run is deliberately not a config key; it only makes sense per
// invocation.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOGO")
	v.AutomaticEnv()

	v.BindPFlag("output", cmd.Flags().Lookup("output"))
	v.BindPFlag("processors", cmd.Flags().Lookup("processor"))
	v.BindPFlag("include_tests", cmd.Flags().Lookup("include-tests"))
	v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", cfgFile)
		}
		return v, nil
	}

	v.SetConfigName("autogo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading autogo.yaml")
		}
	}
	return v, nil
}

// resolveProcessors maps processor names to registered processors. An empty
// list selects every registered processor.
func resolveProcessors(names []string) ([]processor.Processor, error) {
	if len(names) == 0 {
		return processor.AllRegisteredProcessors(), nil
	}
	procs := make([]processor.Processor, len(names))
	for i, name := range names {
		p, ok := processor.RegisteredProcessor(name)
		if !ok {
			return nil, errors.Newf("unknown processor %q (registered: %s)", name, strings.Join(processor.ProcessorNames(), ", "))
		}
		procs[i] = p
	}
	return procs, nil
}

// dryRunOutputFactory still renders every generated file, so rendering
// problems surface, but discards the bytes and prints the destination each
// file would have been written to.
func dryRunOutputFactory(w io.Writer, rootDir string) processor.OutputFactory {
	return func(pkg *packages.Package, filename string) (io.WriteCloser, error) {
		fmt.Fprintf(w, "would write %s\n", dryRunDest(rootDir, pkg, filename))
		return nopCloser{io.Discard}, nil
	}
}

// dryRunDest mirrors the destinations DefaultOutputFactory writes to.
func dryRunDest(rootDir string, pkg *packages.Package, filename string) string {
	if rootDir != "" {
		return filepath.Join(rootDir, filepath.FromSlash(pkg.PkgPath), filename)
	}
	files := pkg.GoFiles
	if len(files) == 0 {
		files = pkg.CompiledGoFiles
	}
	if len(files) > 0 {
		return filepath.Join(filepath.Dir(files[0]), filename)
	}
	return filepath.Join(filepath.FromSlash(pkg.PkgPath), filename)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
