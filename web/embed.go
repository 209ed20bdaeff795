// Package web embeds the HTML templates of the browser UI for single-binary
// distribution.
package web

import "embed"

// Templates holds the server-rendered pages, parsed with html/template.
//
//go:embed templates/*.html
var Templates embed.FS
