package source

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrForbidden is returned for locations outside an AllowList.
var ErrForbidden = errors.New("source not allowed")

// AllowList names the locations remote callers may load. An entry is an
// exact location, a prefix ending in "*", or "*" alone for any location.
// Local paths are compared after cleaning, with any file:// prefix removed.
type AllowList []string

// Allows reports whether location matches an entry.
func (a AllowList) Allows(location string) bool {
	if location == "" {
		return false
	}
	loc := normalizeLocation(location)
	for _, entry := range a {
		switch {
		case entry == "":
			continue
		case entry == "*":
			return true
		case strings.HasSuffix(entry, "*"):
			if strings.HasPrefix(loc, strings.TrimSuffix(entry, "*")) {
				return true
			}
		case normalizeLocation(entry) == loc:
			return true
		}
	}
	return false
}

func normalizeLocation(location string) string {
	if isHTTP(location) {
		return location
	}
	return filepath.Clean(strings.TrimPrefix(location, "file://"))
}

func isHTTP(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
