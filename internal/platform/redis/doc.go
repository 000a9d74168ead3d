// Package redis wires the application to its Redis backend. It owns
// connection establishment (URL parsing, pool sizing, a bounded readiness
// ping loop) and exposes a healthcheck probe for the operational endpoints.
//
// The package deliberately returns the raw go-redis client rather than a
// wrapper: the cache layer builds its own abstraction on top, and everything
// else should not talk to Redis directly.
package redis
