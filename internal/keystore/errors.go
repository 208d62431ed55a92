package keystore

import "errors"

// ErrAlreadyDeprecated is a non-fatal warning: DeprecateHost was called on a
// host that has zero active records and at least one deprecated record.
// The caller should treat it as a successful no-op, per spec.md §4.2.
var ErrAlreadyDeprecated = errors.New("host already deprecated")

// ErrNotDeprecated is a non-fatal warning: RestoreHost was called on a host
// with nothing deprecated to restore.
var ErrNotDeprecated = errors.New("host not deprecated")
