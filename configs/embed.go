// Package configs provides embedded configuration templates for ragsync.
//
// The example config is embedded at build time so `ragsync config init` can
// write it regardless of how the binary was installed.
package configs

import _ "embed"

//go:embed config.example.yaml
var ExampleConfig string
