package gate

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"mediaflow/internal/services"
)

const maxKeyLength = 180

// Sanitize returns the canonical form of identity: NFC normalized, with every
// rune outside [A-Za-z0-9 ._-()] replaced by '_'.
func Sanitize(identity string) string {
	normalized := norm.NFC.String(identity)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if allowed(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '.', '_', '-', '(', ')':
		return true
	}
	return false
}

// KeyFor derives the stable item key for a source. Local paths use the full
// base name, extension included; URLs use host, path, and query without the
// scheme.
func KeyFor(source string) (string, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "gate", "derive key", "source is empty", nil)
	}

	identity := localIdentity(trimmed)
	if IsRemote(trimmed) {
		identity = remoteIdentity(trimmed)
	}
	key := strings.TrimSpace(Sanitize(identity))
	if core := strings.Trim(key, "_ "); core == "" || core == "." || core == ".." {
		return "", services.Wrap(services.ErrValidation, "gate", "derive key",
			fmt.Sprintf("source %q yields no usable key", source), nil)
	}
	if len(key) > maxKeyLength {
		sum := sha1.Sum([]byte(identity))
		key = key[:maxKeyLength-9] + "-" + hex.EncodeToString(sum[:4])
	}
	return key, nil
}

// IsRemote reports whether source is a URL rather than a local path.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "ftps":
		return true
	}
	return false
}

func remoteIdentity(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return source
	}
	identity := strings.ToLower(u.Host) + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		identity += "?" + u.RawQuery
	}
	return identity
}

func localIdentity(source string) string {
	return filepath.Base(source)
}
