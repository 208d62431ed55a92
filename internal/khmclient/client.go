// Package khmclient is Client Sync (spec §4.5): read a local known_hosts
// file, push its entries to a flow, and optionally pull the flow's
// canonical active set back down and rewrite the file atomically.
package khmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/house-of-vanity/khm/internal/kherrors"
	"github.com/house-of-vanity/khm/internal/knownhosts"
)

// dialTimeout and totalTimeout match spec.md §5: a 30s dial timeout and a
// 120s total-request timeout, generous enough for a large known_hosts push
// over a slow link without hanging forever on a dead server.
const (
	dialTimeout  = 30 * time.Second
	totalTimeout = 120 * time.Second
)

// Config configures one sync run.
type Config struct {
	ServerURL  string // e.g. "https://khm.example.com"
	Flow       string
	KnownHosts string // local file path
	InPlace    bool
	BasicAuth  string // "user:pass", empty disables auth
}

// Client drives one sync run against a KHM server.
type Client struct {
	cfg Config
	hc  *http.Client
}

// New builds a Client with the dial/total timeouts of spec.md §5.
func New(cfg Config) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Transport: transport, Timeout: totalTimeout},
	}
}

type keyTripleJSON struct {
	Server    string `json:"server"`
	PublicKey string `json:"public_key"`
}

type keyRecordJSON struct {
	Server     string `json:"server"`
	PublicKey  string `json:"public_key"`
	Deprecated bool   `json:"deprecated"`
}

// SyncStats reports what one Run call did.
type SyncStats struct {
	Read    int
	Pushed  int
	Rewrote bool
	Fetched int
}

// Run executes one full sync: read the local file, push its entries, and
// if InPlace is set, fetch the canonical active set and rewrite the file.
func (c *Client) Run(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	entries, err := readLocal(c.cfg.KnownHosts)
	if err != nil {
		return stats, kherrors.Wrap(kherrors.Internal, "read local known_hosts file", err)
	}
	stats.Read = len(entries)

	if err := c.push(ctx, entries); err != nil {
		return stats, err
	}
	stats.Pushed = len(entries)

	if !c.cfg.InPlace {
		return stats, nil
	}

	records, err := c.fetchActive(ctx)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(records)

	newEntries := make([]knownhosts.Entry, 0, len(records))
	for _, r := range records {
		keyType, b64, ok := strings.Cut(r.PublicKey, " ")
		if !ok {
			continue
		}
		newEntries = append(newEntries, knownhosts.Entry{Hosts: r.Server, KeyType: keyType, Base64Key: b64})
	}
	if err := atomicRewrite(c.cfg.KnownHosts, newEntries); err != nil {
		return stats, kherrors.Wrap(kherrors.Internal, "rewrite local known_hosts file", err)
	}
	stats.Rewrote = true
	return stats, nil
}

// readLocal reads the local known_hosts file. A missing file is not an
// error — the first sync from a fresh client has nothing to push yet,
// matching the original implementation's NotFound-is-empty-list behavior.
func readLocal(path string) ([]knownhosts.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	result, err := knownhosts.Parse(f)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

func (c *Client) push(ctx context.Context, entries []knownhosts.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	body := make([]keyTripleJSON, 0, len(entries))
	for _, e := range entries {
		body = append(body, keyTripleJSON{Server: e.Hosts, PublicKey: e.PublicKey()})
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return kherrors.Wrap(kherrors.Internal, "encode push body", err)
	}

	url := fmt.Sprintf("%s/%s/keys", strings.TrimRight(c.cfg.ServerURL, "/"), c.cfg.Flow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return kherrors.Wrap(kherrors.Internal, "build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Hostname", localHostname())
	c.applyAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return kherrors.Wrap(kherrors.Unavailable, "push keys to server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return serverRejected(resp)
	}
	return nil
}

func (c *Client) fetchActive(ctx context.Context) ([]keyRecordJSON, error) {
	url := fmt.Sprintf("%s/%s/keys", strings.TrimRight(c.cfg.ServerURL, "/"), c.cfg.Flow)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kherrors.Wrap(kherrors.Internal, "build fetch request", err)
	}
	req.Header.Set("X-Client-Hostname", localHostname())
	c.applyAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, kherrors.Wrap(kherrors.Unavailable, "fetch keys from server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, serverRejected(resp)
	}

	var records []keyRecordJSON
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, kherrors.Wrap(kherrors.Internal, "decode server response", err)
	}

	active := records[:0]
	for _, r := range records {
		if !r.Deprecated {
			active = append(active, r)
		}
	}
	return active, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.cfg.BasicAuth == "" {
		return
	}
	user, pass, ok := strings.Cut(c.cfg.BasicAuth, ":")
	if !ok {
		return
	}
	req.SetBasicAuth(user, pass)
}

func serverRejected(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return kherrors.Wrap(kherrors.BadRequest, fmt.Sprintf("server rejected request: %s", resp.Status), fmt.Errorf("%s", body))
}

func localHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}
