// Package config loads and validates the runtime configuration, merging
// defaults, YAML or JSON files, and environment variables in that order.
package config
