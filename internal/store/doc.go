// Package store persists uploaded files and their derived assets in SQLite.
//
// It is a pure data-access layer: every exported operation runs as one short
// critical section (a single statement or a single transaction) behind the
// store mutex, and no operation holds the lock across an external call.
// Business rules such as stage ordering and in-flight checks live in the
// planner; the worker relies on TransitionStatus and CompleteSeparation so a
// late result never overwrites a cancelled asset.
package store
