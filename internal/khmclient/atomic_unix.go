//go:build !windows

package khmclient

import (
	"os"
	"path/filepath"

	"github.com/house-of-vanity/khm/internal/knownhosts"
)

// atomicRewrite writes entries to path without ever leaving it in a
// partially-written state: write to a sibling temp file, fsync it, then
// rename over the target. rename(2) on the same filesystem is atomic, so a
// crash mid-write leaves the original file untouched (spec §9).
func atomicRewrite(path string, entries []knownhosts.Entry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".khm-known-hosts-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := knownhosts.Serialize(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
