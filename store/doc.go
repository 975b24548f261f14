// Package store persists the terminal state of requests (§6
// "Persisted state") using github.com/uptrace/bun, following the same
// pattern as the teacher's sql package: an injected *bun.DB, a bun
// model with explicit column tags, and a schema-init helper that
// creates tables/indexes idempotently inside one transaction.
//
// The schema itself is opaque to the rest of the module: Controller
// and request.Base only depend on the Hooks.SavePersistentState and
// Observer.Get/ListByJob contracts, never on bun directly.
package store
