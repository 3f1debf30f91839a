// Package semver checks script counterpart versions against a configured range.
package semver

import (
	"fmt"
	"regexp"
	"strconv"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:range"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// Range is a parsed version range. A bare major ("1") matches every version with that major,
// prereleases included; anything else is a Masterminds constraint (^1.2.0, ~1.2, >=1 <3, ...).
type Range struct {
	raw        string
	major      int
	constraint *masterminds.Constraints
}

// ParseRange parses rangeStr.
func ParseRange(rangeStr string) (*Range, error) {
	if rangeStr == "" {
		return nil, fmt.Errorf("%s - range is empty", logPrefix)
	}
	if IsMajorOnly(rangeStr) {
		major, err := strconv.Atoi(rangeStr)
		if err != nil {
			return nil, fmt.Errorf("%s - invalid major %q: %w", logPrefix, rangeStr, err)
		}
		return &Range{raw: rangeStr, major: major}, nil
	}
	c, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid range %q: %w", logPrefix, rangeStr, err)
	}
	return &Range{raw: rangeStr, major: -1, constraint: c}, nil
}

// Check reports whether version satisfies the range. An unparseable version is an error.
func (r *Range) Check(version string) (bool, error) {
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	if r.constraint == nil {
		return int(v.Major()) == r.major, nil
	}
	return r.constraint.Check(v), nil
}

// String returns the range as written.
func (r *Range) String() string {
	return r.raw
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// SatisfiesRange checks if a version string satisfies a range. Invalid input never satisfies.
func SatisfiesRange(version, rangeStr string) bool {
	r, err := ParseRange(rangeStr)
	if err != nil {
		return false
	}
	ok, err := r.Check(version)
	return err == nil && ok
}

// Valid reports whether version parses as a semantic version.
func Valid(version string) bool {
	_, err := masterminds.NewVersion(version)
	return err == nil
}
