// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// After the file is parsed, CHATLINK_* environment variables override individual
// fields, then defaults are applied and the result is validated.
package config
