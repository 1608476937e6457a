// Package config loads, normalizes, and validates alertcast configuration.
//
// Configuration is read from a TOML file (default ~/.config/alertcast/config.toml,
// falling back to ./alertcast.toml). Load applies defaults first, then the file,
// then normalization (path expansion, clamping of non-positive intervals), then
// validation. Other packages receive a fully-resolved *Config and never re-read
// the file.
package config
