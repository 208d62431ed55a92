package dnsscan

import (
	"context"
	"testing"
)

func TestScanTotalsMatchResolvedAndUnresolved(t *testing.T) {
	s := New(4)
	ctx := context.Background()

	hosts := []string{"127.0.0.1", "|1|abcd|efgh", "does-not-exist.invalid"}
	report := s.Scan(ctx, hosts)

	if report.Total != len(hosts) {
		t.Fatalf("expected total %d, got %d", len(hosts), report.Total)
	}

	unresolvedCount := 0
	for _, r := range report.Results {
		if !r.Resolved {
			unresolvedCount++
		}
	}
	if unresolvedCount != report.Unresolved {
		t.Fatalf("Unresolved field %d does not match counted unresolved %d", report.Unresolved, unresolvedCount)
	}
}

func TestScanIPLiteralAlwaysResolved(t *testing.T) {
	s := New(4)
	report := s.Scan(context.Background(), []string{"127.0.0.1"})
	if !report.Results[0].Resolved {
		t.Fatalf("expected IP literal to be resolved, got %+v", report.Results[0])
	}
}

func TestScanHashedHostSkipped(t *testing.T) {
	s := New(4)
	report := s.Scan(context.Background(), []string{"|1|xyz|abc"})
	if report.Results[0].Resolved {
		t.Fatalf("expected hashed host to be unresolved")
	}
	if report.Results[0].Error != "hashed-host" {
		t.Fatalf("expected error 'hashed-host', got %q", report.Results[0].Error)
	}
}

func TestScanCommaAliasResolvesFirstToken(t *testing.T) {
	s := New(4)
	report := s.Scan(context.Background(), []string{"127.0.0.1,alias.example"})
	if !report.Results[0].Resolved {
		t.Fatalf("expected comma-separated IP literal to resolve via first token")
	}
}

func TestScanWithParallelismBelowHostCount(t *testing.T) {
	s := New(2)
	hosts := make([]string, 10)
	for i := range hosts {
		hosts[i] = "127.0.0.1"
	}
	report := s.Scan(context.Background(), hosts)
	if report.Total != 10 || report.Unresolved != 0 {
		t.Fatalf("expected all 10 resolved, got %+v", report)
	}
}
