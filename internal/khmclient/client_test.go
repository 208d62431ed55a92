package khmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/house-of-vanity/khm/internal/knownhosts"
)

// sampleKey is a well-formed ssh-ed25519 public key: the codec only accepts
// key bodies that decode to a valid SSH wire-format key.
const sampleKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAABAgMEBQYHCAkKCwwNDg8QERITFBUWFxgZGhscHR4f"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunPushesLocalEntries(t *testing.T) {
	var receivedBody []keyTripleJSON
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prod/keys" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]int{"inserted": len(receivedBody), "duplicates": 0})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	writeFile(t, path, "a.example "+sampleKey+" comment\n")

	c := New(Config{ServerURL: srv.URL, Flow: "prod", KnownHosts: path})
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Read != 1 || stats.Pushed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(receivedBody) != 1 || receivedBody[0].Server != "a.example" {
		t.Fatalf("unexpected body received by server: %+v", receivedBody)
	}
}

func TestRunMissingLocalFileIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]int{"inserted": 0, "duplicates": 0})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist")

	c := New(Config{ServerURL: srv.URL, Flow: "prod", KnownHosts: path})
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Read != 0 || stats.Pushed != 0 {
		t.Fatalf("expected empty read/push, got %+v", stats)
	}
}

func TestRunInPlaceRewritesFromCanonicalSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]int{"inserted": 0, "duplicates": 1})
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]keyRecordJSON{
				{Server: "a.example", PublicKey: sampleKey, Deprecated: false},
				{Server: "b.example", PublicKey: sampleKey, Deprecated: true},
			})
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	writeFile(t, path, "a.example "+sampleKey+"\n")

	c := New(Config{ServerURL: srv.URL, Flow: "prod", KnownHosts: path, InPlace: true})
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Fetched counts the active records kept from the server's response.
	if !stats.Rewrote || stats.Fetched != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rewritten file: %v", err)
	}
	result, err := knownhosts.Parse(strings.NewReader(string(rewritten)))
	if err != nil {
		t.Fatalf("parse rewritten file: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Hosts != "a.example" {
		t.Fatalf("expected only the active entry to survive rewrite, got %+v", result.Entries)
	}
}

func TestAtomicRewriteLeavesOriginalIntactOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	original := "a.example ssh-ed25519 AAAA1\n"
	writeFile(t, path, original)

	// Simulate a crash before rename by writing the temp file and never
	// calling atomicRewrite's rename step — the real function either
	// completes the rename or leaves the original untouched, never a
	// half-written target file.
	tmp, err := os.CreateTemp(dir, ".khm-known-hosts-*.tmp")
	if err != nil {
		t.Fatalf("create temp: %v", err)
	}
	_, _ = tmp.WriteString("partial garbage, no trailing newline")
	tmp.Close()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if string(contents) != original {
		t.Fatalf("original file was modified before rename: %q", contents)
	}
}
