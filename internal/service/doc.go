// Package service contains the application's business logic, coordinating
// between the domain model, the persistence layer, and asynchronous task
// processing. Services own the email lifecycle: ingesting inbound emails,
// advancing them through the processing pipeline, and handling retries of
// failed records.
package service
