// Package web serves the embedded landing page.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static
var content embed.FS

// Handler returns an http.Handler serving the embedded static assets.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(content, "static")
	if err != nil {
		return nil, fmt.Errorf("loading embedded web assets: %w", err)
	}
	return http.FileServer(http.FS(fsys)), nil
}
