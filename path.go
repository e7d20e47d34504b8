package flashfs

import (
	"strings"
)

// cleanPath normalizes a mount-table path to its canonical form: no
// leading or trailing separators, runs of separators collapsed, "."
// components dropped. ".." components are kept verbatim; walking them
// is the mounted filesystem's business, not the table's. The empty
// string is the table root.
func cleanPath(p string) string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		default:
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}

// hasPrefix reports whether path lies at or under prefix. Both must
// be cleaned.
func hasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// trimPrefix returns the remainder of path below prefix, without a
// leading separator.
func trimPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if path == prefix {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
}
