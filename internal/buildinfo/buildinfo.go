// Package buildinfo holds build-time metadata, kept apart from user
// configuration.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Set through -ldflags "-X github.com/trolltrack/trolltrack/internal/buildinfo.Version=..."
var (
	Version   = ""
	BuildDate = ""
)

const unknown = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// Current returns the metadata of the running binary. Without ldflags the
// module version recorded by the Go toolchain is used.
func Current() *Context {
	c := &Context{Version: Version, BuildDate: BuildDate}
	if info, ok := debug.ReadBuildInfo(); ok {
		c.GoVersion = info.GoVersion
		if c.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			c.Version = info.Main.Version
		}
		if c.BuildDate == "" {
			for _, s := range info.Settings {
				if s.Key == "vcs.time" {
					c.BuildDate = s.Value
				}
			}
		}
	}
	return c
}

// GetVersion returns the version, or "unknown".
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown".
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	s := fmt.Sprintf("trolltrack %s (built %s)", c.GetVersion(), c.GetBuildDate())
	if c != nil && c.GoVersion != "" {
		s += " " + c.GoVersion
	}
	return s
}
