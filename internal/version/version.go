// Package version holds the tool's own identity: the name and semver string
// stamped into every generated and reduced program's header comment (spec.md
// §6), and IsStale, which compares a recorded version against it. Nothing
// else in this module calls IsStale.
package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Name is the tool name the header comment records.
const Name = "diffuzz"

// Current is this build's semver string, always valid per semver.IsValid.
const Current = "v0.1.0"

// Compare wraps semver.Compare, normalizing bare "x.y" strings (as recorded
// by older header comments) to the "vx.y" form semver requires.
func Compare(a, b string) int {
	return semver.Compare(normalize(a), normalize(b))
}

// IsStale reports whether recorded (a previously reduced example's header
// version) predates Current.
func IsStale(recorded string) bool {
	return Compare(recorded, Current) < 0
}

// Banner renders the "Generated by" line of the header comment (spec.md §6),
// given the major/minor the header format asks for.
func Banner() string {
	major, minor := majorMinor(Current)
	return fmt.Sprintf("%s v%s.%s", Name, major, minor)
}

func normalize(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

func majorMinor(v string) (string, string) {
	mm := semver.MajorMinor(normalize(v)) // "vX.Y"
	if len(mm) < 2 {
		return "0", "0"
	}
	parts := mm[1:]
	for i := 0; i < len(parts); i++ {
		if parts[i] == '.' {
			return parts[:i], parts[i+1:]
		}
	}
	return parts, "0"
}
