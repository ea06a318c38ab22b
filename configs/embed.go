// Package configs embeds the commented configuration templates written by
// `folio config init`.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .folio.yaml in the project directory.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is written to ~/.config/folio/config.yaml by
// `folio config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
