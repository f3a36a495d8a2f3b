// Package version turns declared dependency constraints into registry lookup
// tokens.
//
// [Normalize] is a deliberately small heuristic, not a range solver: it drops
// a single leading range operator (^, ~, >, =, v, ...) and leaves everything
// else alone. Constraints such as ">=1.2.0 <2", "1.x" or "*" produce tokens
// the registry will not recognise, which surfaces later as an ordinary
// resolution failure for that one dependency.
//
//	version.Normalize("^4.18.2") // "4.18.2"
//	version.Normalize("~1.0.0")  // "1.0.0"
//	version.Normalize("2.1.0")   // "2.1.0"
//	version.Normalize(">=1.0.0") // "=1.0.0" (only one character is removed)
package version

import (
	"github.com/Masterminds/semver"
)

// Normalize strips a single leading non-digit character from raw.
// It never fails: an empty input returns "" and a lone operator returns "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	if c := raw[0]; c >= '0' && c <= '9' {
		return raw
	}
	return raw[1:]
}

// IsConcrete reports whether token is an exact semantic version that a
// registry can look up directly. Tokens left over from ranges, wildcards or
// multi-character operators report false.
func IsConcrete(token string) bool {
	if token == "" || token[0] < '0' || token[0] > '9' {
		return false
	}
	_, err := semver.NewVersion(token)
	return err == nil
}
