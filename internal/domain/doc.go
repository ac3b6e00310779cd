// Package domain contains the core business entities and domain logic of
// the pipeline: the EmailRecord status state machine and the canonical
// meeting data extracted from inbound emails. It is independent of any
// specific infrastructure or delivery mechanism.
package domain
