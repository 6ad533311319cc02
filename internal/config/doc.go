package config

// Package config loads application settings from an optional YAML file with
// ECHODL_* environment-variable overrides and sane built-in defaults.
