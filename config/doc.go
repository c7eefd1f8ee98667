// Package config provides configuration management for the research
// service.
//
// Configuration is resolved once at startup from defaults, an optional
// YAML file and environment variables, then validated. Component packages
// own their sub-config types; this package composes them into one Config.
package config
