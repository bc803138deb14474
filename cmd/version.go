package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/habedi/gotok"

var (
	version   = "0.1.0"
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH
)

// buildDetails reports the main module path and VCS revision embedded by the
// Go toolchain. Binaries built without VCS stamping report "unknown".
func buildDetails(info *debug.BuildInfo, ok bool) (module, revision string) {
	module, revision = modulePath, "unknown"
	if !ok || info == nil {
		return module, revision
	}
	if info.Main.Path != "" {
		module = info.Main.Path
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			revision = s.Value
		}
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.modified" && s.Value == "true" && revision != "unknown" {
			revision += "-dirty"
		}
	}
	return module, revision
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			module, revision := buildDetails(debug.ReadBuildInfo())
			cmd.Println("Gotok version:", version)
			cmd.Println("Module:", module)
			cmd.Println("Revision:", revision)
			cmd.Println("Go version:", goVersion)
			cmd.Println("Platform:", platform)
			cmd.Println("Storage backends:", strings.Join([]string{storeMemory, storeSQLite, storeFile}, ", "))
		},
	}
	return cmd
}
