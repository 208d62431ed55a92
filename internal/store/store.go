// Package store is the Persistence Gateway (spec §4.1): a narrow set of
// typed operations over the relational KeyRecord table, hiding SQL from
// the Engine. In a tagged-variant language this would be an interface;
// here it is the Gateway interface, and tests substitute the sqlite-backed
// Gateway for the postgres-backed one rather than a hand-rolled fake,
// following claworc's own settings_test.go convention of testing against a
// real in-memory database.
package store

import "context"

// KeyRecord is the 4-tuple (flow, host, public_key, deprecated) from
// spec.md §3. CreatedAt is set by the Gateway at insert time.
type KeyRecord struct {
	Flow       string
	Host       string
	PublicKey  string
	Deprecated bool
	CreatedAt  int64 // unix seconds; 0 if unknown (never written by ingest through a non-Gateway path)
}

// UpsertResult reports whether UpsertTriple inserted a new row or found the
// triple already present (idempotent no-op on the deprecated flag).
type UpsertResult int

const (
	Inserted UpsertResult = iota
	AlreadyPresent
)

// Gateway is the capability set the Key-Store Engine depends on. It is
// deliberately narrow: no flow-creation, no arbitrary SQL, nothing the
// Engine doesn't need for the operations in spec.md §4.2.
type Gateway interface {
	// UpsertTriple inserts (flow, host, key) if absent. If present, it
	// leaves the deprecated flag untouched (spec invariant 1).
	UpsertTriple(ctx context.Context, flow, host, key string) (UpsertResult, error)

	// List returns all KeyRecords for flow, optionally including
	// deprecated ones, ordered by (host, key) ascending.
	List(ctx context.Context, flow string, includeDeprecated bool) ([]KeyRecord, error)

	// SetDeprecated flips the deprecated flag for every record of host in
	// flow and returns the number of rows affected.
	SetDeprecated(ctx context.Context, flow, host string, value bool) (int64, error)

	// HardDeleteHost removes every deprecated record of host in flow.
	// Active records are untouched. Returns the number of rows removed.
	HardDeleteHost(ctx context.Context, flow, host string) (int64, error)

	// ListHostnames returns the distinct hosts (active + deprecated) in flow.
	ListHostnames(ctx context.Context, flow string) ([]string, error)

	// HostState reports whether host has at least one active (non-deprecated)
	// record in flow, and whether it has at least one deprecated record.
	// Used by the Engine to distinguish AlreadyDeprecated/NotDeprecated from
	// a genuine state change.
	HostState(ctx context.Context, flow, host string) (hasActive, hasDeprecated bool, err error)

	// Ping checks connectivity, backing the health endpoint.
	Ping(ctx context.Context) error
}
