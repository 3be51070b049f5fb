// Package config provides configuration loading for the coop daemon.
//
// Configuration is loaded from a YAML file with hardcoded defaults and
// environment variable overrides (OMLETCOOP_* pattern). Secrets such as
// the Omlet account password should be supplied via the environment
// rather than written to disk.
//
// The poll interval is clamped to a safe range at load time; every other
// invalid value fails Validate() and stops startup.
package config
