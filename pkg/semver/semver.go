// Package semver checks extension API versions against declared requirements.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:semver"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// IsMajorOnly checks if a constraint is a major-only specifier (e.g., "1").
func IsMajorOnly(constraint string) bool {
	return majorOnlyRegex.MatchString(constraint)
}

// Satisfies reports whether version satisfies constraint.
//
// Supported constraints:
//   - ""          (any version)
//   - 1           (major only)
//   - 1.2.0       (exact version)
//   - ^1.2 ~1.2   (caret and tilde ranges)
//   - >=1.0, <2   (comparison ranges)
func Satisfies(version, constraint string) (bool, error) {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}

	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true, nil
	}

	if IsMajorOnly(constraint) {
		major, err := strconv.ParseUint(constraint, 10, 64)
		if err != nil {
			return false, fmt.Errorf("%s - invalid major %q: %w", logPrefix, constraint, err)
		}
		return sv.Major() == major, nil
	}

	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	return c.Check(sv), nil
}
