// Package task implements the background job system: a persistent queue with
// named queues per job family, a claim-based worker pool, and a periodic
// scheduler.
//
// Tasks move pending -> running -> succeeded, or back to pending with a fixed
// backoff when an attempt fails and retry budget remains. A task whose budget
// is spent becomes dead: terminal, kept for inspection through the store and
// the operational API. Delivery is at least once; every handler must be
// idempotent.
//
// Queue membership is static. The Registry binds each task name to exactly
// one queue at startup, and both the enqueue path and the scheduler resolve
// queues through it; nothing computes a queue name at dispatch time.
//
// Periodic work comes from DefaultSchedule entries. Each entry carries an
// expiry window strictly shorter than its interval: an instance still pending
// past its window is dropped, never executed late.
package task
