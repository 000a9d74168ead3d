// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose
// coupling between components in the system. Services can announce database
// writes without knowing which handlers will process them, which keeps cache
// invalidation out of the write path's dependency graph.
//
// The primary components are:
// - DataChangeEvent: Describes a committed write to a database table
// - DataChangeHandler: Interface for components that react to data changes
// - DataChangeEmitter: Interface for components that publish data changes
package events
