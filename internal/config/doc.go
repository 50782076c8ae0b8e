// Package config defines the pinned release an installation run targets and
// helpers to load, validate and save it in YAML or TOML format.
//
// Config is a plain value: the workflow receives a copy and never mutates it.
// The built-in defaults pin a Meson release, so a config file is optional.
package config
