// Package config loads the YAML configuration of the proving daemon and the
// CLI, fills in defaults relative to the configuration file and resolves
// secrets given through environment variables.
package config
