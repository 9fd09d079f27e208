// Package web holds the embedded single-page chat client.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var staticFS embed.FS

// FS returns the bundle rooted at its index.html.
func FS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static/ is embedded at build time; Sub only fails on an invalid name.
		panic(err)
	}
	return sub
}
