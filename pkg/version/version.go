package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var embedded string

// Version can be overridden at build time with
// -ldflags "-X github.com/amoylab/janus/pkg/version.Version=v1.2.3"
var Version = strings.TrimSpace(embedded)

// Get returns the current version of the application
func Get() string {
	return Version
}
