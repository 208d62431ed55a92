// Package knownhosts is the Known-Hosts Codec (spec §4.6): parse and
// serialize the OpenSSH known_hosts textual format. Used by the client for
// local file I/O; the server receives the same host/key pairs as JSON and
// does not go through this package.
package knownhosts

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Entry is one (host, public_key) pair, matching spec.md §3's Host and
// PublicKey identity (exact string, including the algorithm prefix and
// base64 body, excluding any trailing comment).
type Entry struct {
	Hosts     string // the raw hosts field, comma-separated as written
	KeyType   string
	Base64Key string
	Comment   string // trailing comment as read; Serialize never writes it
}

// PublicKey reconstructs the single-line OpenSSH key text (algorithm
// prefix + base64 body), excluding any comment — this is spec.md's
// PublicKey identity.
func (e Entry) PublicKey() string {
	return e.KeyType + " " + e.Base64Key
}

// ParseResult holds the parsed entries plus a count of skipped malformed
// lines — the parser is "forgiving": malformed lines are skipped with a
// warning counter, not a fatal error (spec.md §4.6).
type ParseResult struct {
	Entries  []Entry
	Warnings int
}

// Parse reads a known_hosts-formatted stream. Blank lines and lines whose
// first non-space character is '#' are always skipped and not counted as
// warnings; there is no option to keep them.
func Parse(r io.Reader) (ParseResult, error) {
	var result ParseResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		entry, ok := parseLine(trimmed)
		if !ok {
			result.Warnings++
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scan known_hosts: %w", err)
	}
	return result, nil
}

// parseLine parses one non-comment, non-blank line per the grammar of
// spec.md §4.6: "hosts SP keytype SP b64 [SP comment]".
func parseLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, false
	}

	hosts := fields[0]
	keyType := fields[1]
	b64 := fields[2]
	comment := ""
	if len(fields) > 3 {
		comment = strings.Join(fields[3:], " ")
	}

	if !isValidKeyType(keyType) || !isValidBase64Body(b64) {
		return Entry{}, false
	}

	// Syntactic acceptance only (spec's non-goal: no signing/verification
	// beyond this), using the same ssh.ParseAuthorizedKey call the teacher
	// uses to validate a key's shape in internal/sshkeys/verify.go.
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(keyType + " " + b64)); err != nil {
		return Entry{}, false
	}

	return Entry{Hosts: hosts, KeyType: keyType, Base64Key: b64, Comment: comment}, true
}

var validKeyTypes = map[string]bool{
	"ssh-rsa":             true,
	"ssh-dss":             true,
	"ssh-ed25519":         true,
	"ecdsa-sha2-nistp256": true,
	"ecdsa-sha2-nistp384": true,
	"ecdsa-sha2-nistp521": true,
}

func isValidKeyType(keyType string) bool {
	return validKeyTypes[keyType]
}

func isValidBase64Body(b64 string) bool {
	if b64 == "" {
		return false
	}
	i := 0
	for ; i < len(b64); i++ {
		c := b64[i]
		if c == '=' {
			break
		}
		if !isBase64Char(c) {
			return false
		}
	}
	for ; i < len(b64); i++ {
		if b64[i] != '=' {
			return false
		}
	}
	return true
}

func isBase64Char(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+' || c == '/':
		return true
	default:
		return false
	}
}

// Serialize writes entries one per line in "host key" form (no comment
// preservation, per spec.md's adopted Open Question decision), with LF
// line endings regardless of host platform.
func Serialize(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s %s\n", e.Hosts, e.PublicKey()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
