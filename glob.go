package usftp

import (
	"path"
	"strings"
)

// ErrBadPattern indicates a globbing pattern was malformed. It is the
// same value as path.ErrBadPattern.
var ErrBadPattern = path.ErrBadPattern

// globMeta is the set of characters that make a pattern segment a
// wildcard rather than a literal name.
const globMeta = `*?[\`

// Glob returns the names of all remote files matching pattern, or nil if
// no file matches. Pattern syntax is that of path.Match, applied one
// path segment at a time: a pattern such as /usr/*/bin/ed expands the
// wildcard segment against a directory listing and carries every match
// forward into the next segment.
//
// Directories that cannot be listed and literal paths that do not exist
// on the server are silently dropped; the only error Glob returns is
// ErrBadPattern.
func (c *Client) Glob(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	segments := strings.Split(pattern, "/")
	frontier := []string{"."}
	if segments[0] == "" { // absolute pattern
		frontier[0] = "/"
		segments = segments[1:]
	}

	// Expand segment by segment. Literal segments are joined on without a
	// round trip; wildcard segments replace the frontier with whatever
	// each directory listing matches.
	lastLiteral := false
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		lastLiteral = !strings.ContainsAny(seg, globMeta)
		var next []string
		for _, dir := range frontier {
			if lastLiteral {
				next = append(next, path.Join(dir, seg))
				continue
			}
			entries, err := c.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, ent := range entries {
				matched, err := path.Match(seg, ent.Filename)
				if err != nil {
					return nil, err
				}
				if matched {
					next = append(next, path.Join(dir, ent.Filename))
				}
			}
		}
		frontier = next
	}

	// Wildcard segments came out of directory listings, so those paths
	// are known to exist. A trailing run of literal segments was only
	// ever joined on and still needs the server's confirmation.
	if !lastLiteral {
		return frontier, nil
	}
	var matches []string
	for _, p := range frontier {
		if _, err := c.Lstat(p); err == nil {
			matches = append(matches, p)
		}
	}
	return matches, nil
}
