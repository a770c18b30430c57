// Package filter matches devices against the wildcard property filters an
// answer file may use instead of naming disks or network interfaces
// outright.
package filter

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Match reports whether the device properties satisfy the filter. Patterns
// support the usual shell wildcards and match case-insensitively. With
// matchAll false a single matching predicate is enough, otherwise every
// predicate must match.
func Match(filter, props map[string]string, matchAll bool) bool {
	if len(filter) == 0 {
		return false
	}
	matched := 0
	for key, pattern := range filter {
		value, ok := props[key]
		if !ok {
			continue
		}
		if matchValue(pattern, value) {
			if !matchAll {
				return true
			}
			matched++
		}
	}
	return matchAll && matched == len(filter)
}

func matchValue(pattern, value string) bool {
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		// An unparsable pattern matches nothing.
		return false
	}
	return g.Match(strings.ToLower(value))
}

// MatchedDevices returns the names of all devices whose property map
// satisfies the filter, sorted.
func MatchedDevices(filter map[string]string, devices map[string]map[string]string, matchAll bool) []string {
	var matches []string
	for name, props := range devices {
		if Match(filter, props, matchAll) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	return matches
}

// MatchSingle returns the first device, in name order, satisfying at
// least one filter predicate.
func MatchSingle(filter map[string]string, devices map[string]map[string]string) (string, bool) {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if Match(filter, devices[name], false) {
			return name, true
		}
	}
	return "", false
}
