// Package events decouples email ingestion from pipeline execution.
//
// The HTTP layer must acknowledge an inbound email before any processing
// runs, so the service emits a TaskRequestEvent instead of touching the
// task runner directly. A handler registered at startup turns each event
// into a processing task. This keeps the service package free of any
// dependency on the task package, which would otherwise be circular.
//
// The in-memory emitter is the only implementation: events never leave
// the process, and an email whose event is lost to a crash is recovered
// from its persisted record at the next startup.
package events
