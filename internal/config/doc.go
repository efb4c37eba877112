// Package config provides configuration loading and validation for the podcast studio service.
// It reads YAML settings layered over defaults, validates each section, and pulls
// provider credentials from the environment (optionally seeded from a .env file).
package config
