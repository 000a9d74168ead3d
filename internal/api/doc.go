// Package api implements the HTTP layer: request decoding and validation,
// invocation of the service layer, and JSON response shaping. Handlers never
// surface raw store or cache errors; messages are sanitized before they
// leave the process.
package api
