package configs

import "embed"

// ProfileDefaults contains shipped default launch-profile YAML files.
//
//go:embed profiles/*.yaml
var ProfileDefaults embed.FS
