// Package store defines interfaces for data persistence operations.
// These interfaces keep the pipeline's core logic independent of the
// underlying database: the orchestrator and services talk to EmailStore,
// never to SQL directly.
package store
