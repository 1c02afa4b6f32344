package pack

import (
	"path"
	"strings"
)

// NormalizePath cleans a pack relative path into a slash separated path
// that stays inside the install root. It returns false for paths that are
// absolute, contain a ".." component, or have no final segment; callers
// skip those entries.
func NormalizePath(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")

	if p == "" || strings.HasPrefix(p, "/") {
		return "", false
	}

	// drive letters, C:/foo
	if len(p) >= 2 && p[1] == ':' {
		return "", false
	}

	segs := strings.Split(p, "/")

	switch segs[len(segs)-1] {
	case "", ".":
		return "", false
	}

	var parts []string

	for _, seg := range segs {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", false
		}

		parts = append(parts, seg)
	}

	return path.Join(parts...), true
}
