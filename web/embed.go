// Package web embeds the page templates and static assets of the waterfall UI.
package web

import "embed"

// TemplatesFS holds the page and fragment templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the chart script.
//
//go:embed static/*
var StaticFS embed.FS
