//go:build windows

package khmclient

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"

	"github.com/house-of-vanity/khm/internal/knownhosts"
)

// atomicRewrite is the Windows counterpart of the POSIX rename-based
// rewrite: os.Rename does not replace an existing file on Windows, so this
// calls MoveFileEx directly with MOVEFILE_REPLACE_EXISTING, which performs
// the same single atomic replace.
func atomicRewrite(path string, entries []knownhosts.Entry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".khm-known-hosts-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

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

	tmpPtr, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	destPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(tmpPtr, destPtr, windows.MOVEFILE_REPLACE_EXISTING)
}
