// Package version decides release versions.
//
// The decider takes the current package version plus a requested target and
// answers "what version is this release moving to", where the answer may be
// "none" (the package already satisfies the request and drops out of the
// release). It also computes the post-release development version that
// follows a successful release.
//
// Key types:
//   - [Target] is the user request: a relative [Level] or an absolute version
//   - [Level] names the relative bump levels (major, minor, ..., alpha)
//
// Semantic version arithmetic is delegated to Masterminds/semver.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnsupportedVersionRequest is returned when the requested target cannot
// be reached from the current version: an absolute version below the current
// one, or a pre-release track downgrade (e.g. rc -> beta).
var ErrUnsupportedVersionRequest = errors.New("unsupported version request")

// Level is a relative bump request.
type Level int

const (
	// LevelRelease strips the pre-release identifiers, turning a pre-release
	// into its final version. It is a no-op for non-pre-release versions.
	LevelRelease Level = iota
	// LevelMajor bumps the major version and clears pre-release identifiers.
	LevelMajor
	// LevelMinor bumps the minor version and clears pre-release identifiers.
	LevelMinor
	// LevelPatch bumps the patch version. On a pre-release it finalizes the
	// version instead of bumping (1.2.3-rc.1 becomes 1.2.3).
	LevelPatch
	// LevelRC moves to or increments the rc pre-release track.
	LevelRC
	// LevelBeta moves to or increments the beta pre-release track.
	LevelBeta
	// LevelAlpha moves to or increments the alpha pre-release track.
	LevelAlpha
)

var levelNames = map[Level]string{
	LevelRelease: "release",
	LevelMajor:   "major",
	LevelMinor:   "minor",
	LevelPatch:   "patch",
	LevelRC:      "rc",
	LevelBeta:    "beta",
	LevelAlpha:   "alpha",
}

// ParseLevel parses a bump level name. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown bump level %q", s)
}

func (l Level) String() string { return levelNames[l] }

// trackRank orders the pre-release tracks so moving alpha -> beta -> rc is
// allowed and the reverse direction is rejected.
var trackRank = map[string]int{"alpha": 0, "beta": 1, "rc": 2}

// Target is either a relative bump level or an explicit version.
type Target struct {
	level    Level
	absolute *semver.Version
}

// ParseTarget interprets s as a bump level first and an absolute semantic
// version second, mirroring how the release subcommand accepts its
// positional argument.
func ParseTarget(s string) (Target, error) {
	if l, err := ParseLevel(s); err == nil {
		return Target{level: l}, nil
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Target{}, fmt.Errorf("%q is neither a bump level nor a version: %w", s, err)
	}
	return Target{absolute: v}, nil
}

// DefaultTarget is the "release" level: finalize pre-releases.
func DefaultTarget() Target { return Target{level: LevelRelease} }

func (t Target) String() string {
	if t.absolute != nil {
		return t.absolute.String()
	}
	return t.level.String()
}

// Bump decides the next version for current. A nil result with a nil error
// means no release is needed: the current version already satisfies the
// request. Callers must treat that as "this package is not part of this
// release".
//
// metadata, when non-empty, is set as the build metadata of the decided
// version.
func (t Target) Bump(current *semver.Version, metadata string) (*semver.Version, error) {
	var next *semver.Version
	var err error
	if t.absolute != nil {
		next, err = bumpAbsolute(current, t.absolute)
	} else {
		next, err = bumpRelative(current, t.level)
	}
	if err != nil || next == nil {
		return nil, err
	}
	if metadata != "" {
		withMeta, err := next.SetMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("invalid build metadata %q: %w", metadata, err)
		}
		next = &withMeta
	}
	return next, nil
}

func bumpAbsolute(current, target *semver.Version) (*semver.Version, error) {
	switch {
	case target.GreaterThan(current):
		v := *target
		return &v, nil
	case target.Equal(current):
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: cannot release %s, smaller than current version %s",
			ErrUnsupportedVersionRequest, target, current)
	}
}

func bumpRelative(current *semver.Version, level Level) (*semver.Version, error) {
	switch level {
	case LevelMajor:
		v := current.IncMajor()
		return &v, nil
	case LevelMinor:
		v := current.IncMinor()
		return &v, nil
	case LevelPatch:
		// IncPatch finalizes a pre-release without bumping, which is the
		// behavior we want for patch on 1.2.3-rc.1.
		v := current.IncPatch()
		return &v, nil
	case LevelRelease:
		if current.Prerelease() == "" {
			return nil, nil
		}
		v, err := current.SetPrerelease("")
		if err != nil {
			return nil, err
		}
		return &v, nil
	case LevelRC, LevelBeta, LevelAlpha:
		return bumpTrack(current, level.String())
	default:
		return nil, fmt.Errorf("unhandled bump level %v", level)
	}
}

// bumpTrack moves current onto the named pre-release track.
func bumpTrack(current *semver.Version, track string) (*semver.Version, error) {
	pre := current.Prerelease()
	if pre == "" {
		base := current.IncPatch()
		v, err := base.SetPrerelease(track + ".1")
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	parts := strings.Split(pre, ".")
	head := parts[0]
	if head == track {
		n := 1
		if len(parts) > 1 {
			if cur, err := strconv.Atoi(parts[1]); err == nil {
				n = cur + 1
			}
		}
		v, err := current.SetPrerelease(fmt.Sprintf("%s.%d", track, n))
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	curRank, ok := trackRank[head]
	if !ok || curRank > trackRank[track] {
		return nil, fmt.Errorf("%w: cannot move pre-release %s to %s",
			ErrUnsupportedVersionRequest, pre, track)
	}
	v, err := current.SetPrerelease(track + ".1")
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PostRelease computes the development version that follows released: the
// patch-incremented version tagged with devExt (e.g. 1.2.3 -> 1.2.4-alpha).
// Pre-releases never get a development bump, so the result is nil for them.
func PostRelease(released *semver.Version, devExt string) (*semver.Version, error) {
	if released.Prerelease() != "" {
		return nil, nil
	}
	next := released.IncPatch()
	v, err := next.SetPrerelease(devExt)
	if err != nil {
		return nil, fmt.Errorf("invalid dev version extension %q: %w", devExt, err)
	}
	return &v, nil
}
