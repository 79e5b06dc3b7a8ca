// Package ui embeds the Policy Mesh console: a single page for sending a
// chat request, inspecting the routing decision, and loading the active
// rules.
package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:static
var staticFS embed.FS

// DistFS returns the embedded console filesystem rooted at static/.
func DistFS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
