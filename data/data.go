// Package data embeds the starter catalog loaded by techshop-data-loader.
package data

import "embed"

//go:embed catalog.csv
var FS embed.FS
