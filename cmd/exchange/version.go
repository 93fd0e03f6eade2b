package main

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// Version returns the CLI version.
//
// A binary installed with `go install ...@version` reports its module version.
// Development builds report "devel-<VERSION>", plus "+<revision>" when the
// build carries VCS information.
func Version() string {
	base := strings.TrimSpace(embeddedVersion)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return base
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	version := "devel-" + base
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			version += "+" + s.Value[:7]
			break
		}
	}
	return version
}

// userAgent is sent with every request made by the CLI.
func userAgent() string {
	return "exchange-cli/" + Version()
}
