// Package config loads and validates application settings from environment
// variables and an optional YAML file. Every policy table the rest of the
// system consumes (cache TTLs, task retry and time-limit settings, auth
// lifetimes) is read here once at startup and passed into constructors, so
// no component reaches into ambient configuration at runtime.
package config
