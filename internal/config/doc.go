// Package config defines the application configuration structure and
// loading logic, combining defaults, an optional YAML file, and
// TASKMILL_-prefixed environment variables.
package config
