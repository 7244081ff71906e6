// Package web holds the page templates and message catalogs compiled into
// the binary.
package web

import "embed"

//go:embed templates
var Templates embed.FS

//go:embed i18n
var Translations embed.FS
