// Package dnsscan is the DNS-resolution scanner (spec §4.3): given a flow's
// distinct hostnames, it resolves each with bounded parallelism and a
// per-host timeout and reports resolved/unresolved. It mutates nothing —
// bulk deprecation is a separate call the caller makes after reviewing the
// results.
package dnsscan

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultParallelism is the default max concurrent resolutions,
	// per spec.md §4.3 ("design default 32").
	DefaultParallelism = 32

	// PerHostTimeout is the fixed per-host resolution timeout.
	PerHostTimeout = 3 * time.Second
)

// Result is one host's resolution outcome.
type Result struct {
	Server   string `json:"server"`
	Resolved bool   `json:"resolved"`
	Error    string `json:"error,omitempty"`
}

// Report is the full scan response shape of spec.md §4.3/§6.1.
type Report struct {
	Results    []Result `json:"results"`
	Total      int      `json:"total"`
	Unresolved int      `json:"unresolved"`
}

// Scanner resolves hostnames with bounded concurrency. The zero value uses
// DefaultParallelism.
type Scanner struct {
	Parallelism int64
	Resolver    *net.Resolver
}

// New constructs a Scanner with the given parallelism; 0 or negative uses
// DefaultParallelism.
func New(parallelism int) *Scanner {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Scanner{Parallelism: int64(parallelism), Resolver: net.DefaultResolver}
}

// Scan resolves every host in hosts concurrently, bounded by a weighted
// semaphore (the "bounded fan-out" §9 calls for, modeled the same way the
// original implementation bounds it with a tokio::Semaphore). Scan never
// mutates any state. A client-disconnect cancellation on ctx aborts
// in-flight resolutions — the only operations long enough to matter, per
// spec §5 — since each resolution's own timeout context is derived from ctx.
func (s *Scanner) Scan(ctx context.Context, hosts []string) Report {
	parallelism := s.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	sem := semaphore.NewWeighted(parallelism)
	results := make([]Result, len(hosts))

	var wg sync.WaitGroup
	for i, h := range hosts {
		i, h := i, h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Server: h, Resolved: false, Error: "cancelled"}
				return
			}
			defer sem.Release(1)
			results[i] = resolveOne(ctx, s.Resolver, h)
		}()
	}
	wg.Wait()

	unresolved := 0
	for _, r := range results {
		if !r.Resolved {
			unresolved++
		}
	}
	return Report{Results: results, Total: len(results), Unresolved: unresolved}
}

// resolveOne resolves a single host per the normalization rules of
// spec.md §4.3: "host,alias,…" resolves the first token; "|1|" hashed
// tokens are skipped; IP literals always count as resolved.
func resolveOne(ctx context.Context, resolver *net.Resolver, host string) Result {
	target := host
	if idx := strings.IndexByte(target, ','); idx >= 0 {
		target = target[:idx]
	}

	if strings.HasPrefix(target, "|1|") {
		return Result{Server: host, Resolved: false, Error: "hashed-host"}
	}

	if ip := net.ParseIP(trimBrackets(target)); ip != nil {
		return Result{Server: host, Resolved: true}
	}

	hostCtx, cancel := context.WithTimeout(ctx, PerHostTimeout)
	defer cancel()

	addrs, err := resolver.LookupHost(hostCtx, target)
	if err != nil {
		if hostCtx.Err() == context.DeadlineExceeded {
			return Result{Server: host, Resolved: false, Error: "timeout"}
		}
		return Result{Server: host, Resolved: false, Error: err.Error()}
	}
	if len(addrs) == 0 {
		return Result{Server: host, Resolved: false, Error: "no addresses returned"}
	}
	return Result{Server: host, Resolved: true}
}

func trimBrackets(s string) string {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}
