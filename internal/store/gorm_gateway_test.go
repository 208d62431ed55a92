package store

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestGateway creates a fresh in-memory SQLite-backed Gateway for each
// test, matching claworc's own setupTestDB helper.
func newTestGateway(t *testing.T) *GormGateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	gw, err := NewGormGateway(db)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func TestUpsertTripleIdempotent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	res, err := gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res != Inserted {
		t.Fatalf("expected Inserted, got %v", res)
	}

	res, err = gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if res != AlreadyPresent {
		t.Fatalf("expected AlreadyPresent, got %v", res)
	}

	records, err := gw.List(ctx, "prod", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestReingestionDoesNotFlipDeprecated(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := gw.SetDeprecated(ctx, "prod", "a.example", true); err != nil {
		t.Fatalf("deprecate: %v", err)
	}

	if _, err := gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	records, err := gw.List(ctx, "prod", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || !records[0].Deprecated {
		t.Fatalf("expected the record to remain deprecated, got %+v", records)
	}
}

func TestListFiltersDeprecatedByDefault(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")
	gw.UpsertTriple(ctx, "prod", "b.example", "ssh-ed25519 AAAA2")
	gw.SetDeprecated(ctx, "prod", "b.example", true)

	active, err := gw.List(ctx, "prod", false)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Host != "a.example" {
		t.Fatalf("expected only a.example active, got %+v", active)
	}

	all, err := gw.List(ctx, "prod", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records total, got %d", len(all))
	}
}

func TestHardDeleteOnlyRemovesDeprecated(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")

	deleted, err := gw.HardDeleteHost(ctx, "prod", "a.example")
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted (active record), got %d", deleted)
	}

	gw.SetDeprecated(ctx, "prod", "a.example", true)
	deleted, err = gw.HardDeleteHost(ctx, "prod", "a.example")
	if err != nil {
		t.Fatalf("hard delete after deprecate: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	all, err := gw.List(ctx, "prod", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no records left, got %+v", all)
	}
}

func TestFlowIsolation(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")
	gw.UpsertTriple(ctx, "staging", "a.example", "ssh-ed25519 AAAA2")

	prodRecords, _ := gw.List(ctx, "prod", true)
	stagingRecords, _ := gw.List(ctx, "staging", true)

	if len(prodRecords) != 1 || prodRecords[0].PublicKey != "ssh-ed25519 AAAA1" {
		t.Fatalf("unexpected prod records: %+v", prodRecords)
	}
	if len(stagingRecords) != 1 || stagingRecords[0].PublicKey != "ssh-ed25519 AAAA2" {
		t.Fatalf("unexpected staging records: %+v", stagingRecords)
	}
}

func TestMultiKeyPerHost(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	gw.UpsertTriple(ctx, "prod", "h", "ssh-rsa AAAA1")
	gw.UpsertTriple(ctx, "prod", "h", "ssh-ed25519 AAAA2")

	records, err := gw.List(ctx, "prod", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestHostState(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	hasActive, hasDeprecated, err := gw.HostState(ctx, "prod", "missing.example")
	if err != nil {
		t.Fatalf("host state: %v", err)
	}
	if hasActive || hasDeprecated {
		t.Fatalf("expected no state for unknown host, got active=%v deprecated=%v", hasActive, hasDeprecated)
	}

	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA1")
	hasActive, hasDeprecated, err = gw.HostState(ctx, "prod", "a.example")
	if err != nil {
		t.Fatalf("host state: %v", err)
	}
	if !hasActive || hasDeprecated {
		t.Fatalf("expected active only, got active=%v deprecated=%v", hasActive, hasDeprecated)
	}
}

func TestListHostnames(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	gw.UpsertTriple(ctx, "prod", "b.example", "ssh-rsa AAAA1")
	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-rsa AAAA2")
	gw.UpsertTriple(ctx, "prod", "a.example", "ssh-ed25519 AAAA3")

	hosts, err := gw.ListHostnames(ctx, "prod")
	if err != nil {
		t.Fatalf("list hostnames: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 distinct hosts, got %v", hosts)
	}
}
