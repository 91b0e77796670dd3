package webassets

import "embed"

// FS contains the dashboard templates and static assets.
//
//go:embed templates/*.html static/*
var FS embed.FS
