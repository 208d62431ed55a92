// Package keystore is the Key-Store Engine (spec §4.2): the only mutator
// of persistent state. It mirrors the HTTP surface without any URL
// concerns, and depends on the store.Gateway capability set exclusively —
// it holds no other state, so it is safe for concurrent use for free.
package keystore

import (
	"context"
	"sort"

	"github.com/house-of-vanity/khm/internal/kherrors"
	"github.com/house-of-vanity/khm/internal/store"
)

// Triple is an incoming (host, public_key) pair to ingest into a flow.
type Triple struct {
	Host      string
	PublicKey string
}

// IngestStats reports the outcome of a batch ingest, per spec.md §4.2.
type IngestStats struct {
	Inserted   int
	Duplicates int
}

// BulkStats reports the outcome of a bulk deprecate/restore call.
type BulkStats struct {
	Affected int64
	Skipped  []string
}

// Engine implements the domain operations of spec.md §4.2 over a Gateway.
type Engine struct {
	gw store.Gateway
}

// New constructs an Engine over the given Gateway.
func New(gw store.Gateway) *Engine {
	return &Engine{gw: gw}
}

// IngestBatch upserts each triple in array order (spec §5: "within a batch
// POST, triples are processed in array order; a duplicate in the middle
// does not abort later items"). Duplicates do not propagate an error.
func (e *Engine) IngestBatch(ctx context.Context, flow string, triples []Triple) (IngestStats, error) {
	var stats IngestStats
	for _, t := range triples {
		res, err := e.gw.UpsertTriple(ctx, flow, t.Host, t.PublicKey)
		if err != nil {
			return stats, err
		}
		switch res {
		case store.Inserted:
			stats.Inserted++
		case store.AlreadyPresent:
			stats.Duplicates++
		}
	}
	return stats, nil
}

// Read returns the records of flow, sorted by (host, key) ascending
// (spec §4.1's List contract; the Gateway already sorts, this just
// re-asserts the ordering invariant at the Engine boundary for any
// Gateway implementation that might not).
func (e *Engine) Read(ctx context.Context, flow string, includeDeprecated bool) ([]store.KeyRecord, error) {
	records, err := e.gw.List(ctx, flow, includeDeprecated)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Host != records[j].Host {
			return records[i].Host < records[j].Host
		}
		return records[i].PublicKey < records[j].PublicKey
	})
	return records, nil
}

// DeprecateHost deprecates every record of host in flow. If the host has
// zero active records and at least one deprecated record, this is a
// non-fatal no-op reported via ErrAlreadyDeprecated.
func (e *Engine) DeprecateHost(ctx context.Context, flow, host string) (int64, error) {
	hasActive, hasDeprecated, err := e.gw.HostState(ctx, flow, host)
	if err != nil {
		return 0, err
	}
	if !hasActive && !hasDeprecated {
		return 0, kherrors.New(kherrors.NotFound, "host not found in flow")
	}
	if !hasActive && hasDeprecated {
		return 0, ErrAlreadyDeprecated
	}
	return e.gw.SetDeprecated(ctx, flow, host, true)
}

// RestoreHost is the inverse of DeprecateHost. It rejects with
// ErrNotDeprecated if nothing was deprecated.
func (e *Engine) RestoreHost(ctx context.Context, flow, host string) (int64, error) {
	hasActive, hasDeprecated, err := e.gw.HostState(ctx, flow, host)
	if err != nil {
		return 0, err
	}
	if !hasActive && !hasDeprecated {
		return 0, kherrors.New(kherrors.NotFound, "host not found in flow")
	}
	if !hasDeprecated {
		return 0, ErrNotDeprecated
	}
	return e.gw.SetDeprecated(ctx, flow, host, false)
}

// PermanentDeleteHost removes every deprecated record of host in flow.
// Active records cannot be permanently deleted: if the host still has any
// active record, this rejects with a Conflict error (spec §3 invariant 3,
// §8 S4).
func (e *Engine) PermanentDeleteHost(ctx context.Context, flow, host string) (int64, error) {
	hasActive, hasDeprecated, err := e.gw.HostState(ctx, flow, host)
	if err != nil {
		return 0, err
	}
	if !hasActive && !hasDeprecated {
		return 0, kherrors.New(kherrors.NotFound, "host not found in flow")
	}
	if hasActive {
		return 0, kherrors.New(kherrors.Conflict, "host has active records; deprecate before permanent delete")
	}
	return e.gw.HardDeleteHost(ctx, flow, host)
}

// BulkDeprecate deprecates every host in hosts, skipping (not failing) any
// host that is already fully deprecated or unknown.
func (e *Engine) BulkDeprecate(ctx context.Context, flow string, hosts []string) (BulkStats, error) {
	var stats BulkStats
	for _, h := range hosts {
		affected, err := e.DeprecateHost(ctx, flow, h)
		switch {
		case err == nil:
			stats.Affected += affected
		case kherrors.Is(err, kherrors.NotFound), err == ErrAlreadyDeprecated:
			stats.Skipped = append(stats.Skipped, h)
		default:
			return stats, err
		}
	}
	return stats, nil
}

// BulkRestore is the inverse of BulkDeprecate.
func (e *Engine) BulkRestore(ctx context.Context, flow string, hosts []string) (BulkStats, error) {
	var stats BulkStats
	for _, h := range hosts {
		affected, err := e.RestoreHost(ctx, flow, h)
		switch {
		case err == nil:
			stats.Affected += affected
		case kherrors.Is(err, kherrors.NotFound), err == ErrNotDeprecated:
			stats.Skipped = append(stats.Skipped, h)
		default:
			return stats, err
		}
	}
	return stats, nil
}

// ListHostnames returns the distinct hosts of flow, for the DNS scanner.
func (e *Engine) ListHostnames(ctx context.Context, flow string) ([]string, error) {
	return e.gw.ListHostnames(ctx, flow)
}

// Ping checks Gateway connectivity, backing the health endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	return e.gw.Ping(ctx)
}
