package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set at build time via ldflags.
var (
	version    = "dev"
	commitHash = "dev"
	buildTime  = "unknown"
)

type buildInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

func (i buildInfo) String() string {
	return fmt.Sprintf("autogo %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show autogo version information",
	Long:  `Display version, build time, commit hash, and platform information for the autogo binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := buildInfo{
			Version:    version,
			CommitHash: commitHash,
			BuildTime:  buildTime,
			GoVersion:  runtime.Version(),
			Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return
		}

		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n", info.Platform)
		fmt.Fprintf(cmd.OutOrStdout(), "Go: %s\n", info.GoVersion)
	},
}

func init() {
	versionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
