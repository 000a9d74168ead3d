// Package store defines the persistence interfaces for the application's
// entities, the shared DBTX abstraction, and the sentinel errors store
// implementations translate database failures into.
package store
