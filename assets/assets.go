// Package assets embeds the help text and the default workbook layout.
package assets

import _ "embed"

// HelpMarkdown is the user guide rendered at /help and by the CLI.
//
//go:embed help.md
var HelpMarkdown []byte

// LayoutYAML documents the default cell layout; LAYOUT_FILE overrides it.
//
//go:embed layout.yaml
var LayoutYAML []byte
