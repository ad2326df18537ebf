package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Matches reports whether a cargo version requirement is satisfied by v.
func Matches(req string, v *semver.Version) (bool, error) {
	c, err := semver.NewConstraint(cargoConstraint(req))
	if err != nil {
		return false, fmt.Errorf("invalid version requirement %q: %w", req, err)
	}
	return c.Check(v), nil
}

// cargoConstraint translates a cargo requirement into constraint syntax.
// Cargo treats a bare requirement like "1.0" as a caret requirement.
func cargoConstraint(req string) string {
	trimmed := strings.TrimSpace(req)
	if trimmed == "" {
		return "*"
	}
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		return "^" + trimmed
	}
	return trimmed
}

// SetRequirement computes a rewritten requirement that is satisfied by v
// while keeping the operator style of the original as closely as possible:
// "=1.0.0" stays an exact pin, "^1.0" keeps its caret and precision, a bare
// "1.0" stays bare. Comparator sets collapse to a caret requirement on the
// new version.
//
// The second return value is false when no rewrite is needed (wildcard
// requirements, or the requirement already spelled exactly this way).
func SetRequirement(req string, v *semver.Version) (string, bool, error) {
	trimmed := strings.TrimSpace(req)
	if trimmed == "" || trimmed == "*" {
		return "", false, nil
	}

	var updated string
	switch {
	case strings.ContainsAny(trimmed, ",<>") || strings.Contains(trimmed, " "):
		updated = "^" + v.String()
	case strings.HasPrefix(trimmed, "="):
		updated = "=" + v.String()
	case strings.HasPrefix(trimmed, "^"):
		updated = "^" + trimPrecision(v, trimmed[1:])
	case strings.HasPrefix(trimmed, "~"):
		updated = "~" + trimPrecision(v, trimmed[1:])
	case trimmed[0] >= '0' && trimmed[0] <= '9':
		updated = trimPrecision(v, trimmed)
	default:
		updated = "^" + v.String()
	}

	if updated == trimmed {
		return "", false, nil
	}
	return updated, true, nil
}

// trimPrecision formats v with the same number of version components the
// original requirement used ("1" -> "2", "1.0" -> "2.0"). Versions carrying
// pre-release identifiers are always spelled in full, because a truncated
// requirement can never match a pre-release.
func trimPrecision(v *semver.Version, orig string) string {
	if v.Prerelease() != "" || v.Metadata() != "" {
		return v.String()
	}
	numeric := strings.SplitN(orig, "-", 2)[0]
	switch strings.Count(numeric, ".") {
	case 0:
		return fmt.Sprintf("%d", v.Major())
	case 1:
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	default:
		return v.String()
	}
}
