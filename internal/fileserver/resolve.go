// Package fileserver implements the lab file server: GET serves the lab's
// serve directory and POST stores uploads in its loot directory.
//
// Request paths are taken raw, percent-decoded, stripped of every ".."
// occurrence and then joined with securejoin, so no request can reach a file
// outside its root, through symlinks included.
package fileserver

import (
	"fmt"
	"net/url"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// UploadPrefix is stripped from POST paths
const UploadPrefix = "/upload/"

// Sanitize turns an escaped request path into a relative path with every
// ".." removed. Query and fragment are dropped.
func Sanitize(escaped string) (string, error) {
	if i := strings.IndexAny(escaped, "?#"); i >= 0 {
		escaped = escaped[:i]
	}
	p, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("bad path encoding: %w", err)
	}
	p = strings.ReplaceAll(p, "..", "")
	return strings.TrimLeft(p, "/"), nil
}

// ResolveServePath maps an escaped GET path to a file under root. The result
// always lies within root.
func ResolveServePath(root, escaped string) (string, error) {
	rel, err := Sanitize(escaped)
	if err != nil {
		return "", err
	}
	return securejoin.SecureJoin(root, rel)
}

// UploadTarget strips the upload prefix (or a bare leading slash) from an
// escaped POST path and sanitizes the rest. An empty result means the caller
// picks a name.
func UploadTarget(escaped string) (string, error) {
	switch {
	case strings.HasPrefix(escaped, UploadPrefix):
		escaped = escaped[len(UploadPrefix):]
	case escaped == strings.TrimSuffix(UploadPrefix, "/"):
		escaped = ""
	}
	return Sanitize(escaped)
}

// ResolveUploadPath joins a sanitized upload target with the loot root
func ResolveUploadPath(root, rel string) (string, error) {
	return securejoin.SecureJoin(root, rel)
}
