package version

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.StrictNewVersion(s)
	require.NoError(t, err)
	return v
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in         string
		wantString string
		wantErr    bool
	}{
		{in: "release", wantString: "release"},
		{in: "minor", wantString: "minor"},
		{in: "RC", wantString: "rc"},
		{in: "1.2.3", wantString: "1.2.3"},
		{in: "2.0.0-beta.1", wantString: "2.0.0-beta.1"},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			target, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantString, target.String())
		})
	}
}

func TestBump_Relative(t *testing.T) {
	tests := []struct {
		name    string
		current string
		level   Level
		want    string // "" means no release
		wantErr bool
	}{
		{name: "major", current: "1.2.3", level: LevelMajor, want: "2.0.0"},
		{name: "minor", current: "1.2.3", level: LevelMinor, want: "1.3.0"},
		{name: "patch", current: "1.2.3", level: LevelPatch, want: "1.2.4"},
		{name: "patch finalizes prerelease", current: "1.2.3-rc.1", level: LevelPatch, want: "1.2.3"},
		{name: "release strips prerelease", current: "0.1.0-alpha", level: LevelRelease, want: "0.1.0"},
		{name: "release is noop without prerelease", current: "0.1.0", level: LevelRelease, want: ""},
		{name: "rc from release", current: "1.2.3", level: LevelRC, want: "1.2.4-rc.1"},
		{name: "rc increments", current: "1.2.4-rc.1", level: LevelRC, want: "1.2.4-rc.2"},
		{name: "rc from bare track", current: "1.2.4-rc", level: LevelRC, want: "1.2.4-rc.1"},
		{name: "beta to rc", current: "1.2.4-beta.3", level: LevelRC, want: "1.2.4-rc.1"},
		{name: "rc to beta is rejected", current: "1.2.4-rc.1", level: LevelBeta, wantErr: true},
		{name: "unknown track is rejected", current: "1.2.4-dev.1", level: LevelAlpha, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Target{level: tt.level}.Bump(mustVersion(t, tt.current), "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedVersionRequest)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestBump_Absolute(t *testing.T) {
	current := mustVersion(t, "1.2.3")

	t.Run("greater", func(t *testing.T) {
		got, err := Target{absolute: mustVersion(t, "2.0.0")}.Bump(current, "")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2.0.0", got.String())
	})

	t.Run("equal means no release", func(t *testing.T) {
		got, err := Target{absolute: mustVersion(t, "1.2.3")}.Bump(current, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("smaller is fatal", func(t *testing.T) {
		_, err := Target{absolute: mustVersion(t, "1.0.0")}.Bump(current, "")
		assert.ErrorIs(t, err, ErrUnsupportedVersionRequest)
	})
}

func TestBump_Metadata(t *testing.T) {
	got, err := Target{level: LevelMinor}.Bump(mustVersion(t, "1.2.3"), "build.5")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.3.0+build.5", got.String())
}

func TestPostRelease(t *testing.T) {
	t.Run("release gets dev bump", func(t *testing.T) {
		got, err := PostRelease(mustVersion(t, "1.2.3"), "alpha")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "1.2.4-alpha", got.String())
		assert.True(t, got.GreaterThan(mustVersion(t, "1.2.3")))
	})

	t.Run("prerelease gets none", func(t *testing.T) {
		got, err := PostRelease(mustVersion(t, "1.2.3-rc.1"), "alpha")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMatches(t *testing.T) {
	tests := []struct {
		req     string
		version string
		want    bool
	}{
		{req: "^1.0", version: "1.9.0", want: true},
		{req: "^1.0", version: "2.0.0", want: false},
		{req: "=1.0.0", version: "1.0.0", want: true},
		{req: "=1.0.0", version: "1.0.1", want: false},
		{req: "1.0", version: "1.5.0", want: true}, // bare requirements are caret in cargo
		{req: "1.0", version: "2.0.0", want: false},
		{req: "*", version: "3.1.4", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.req+" vs "+tt.version, func(t *testing.T) {
			got, err := Matches(tt.req, mustVersion(t, tt.version))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetRequirement(t *testing.T) {
	tests := []struct {
		name    string
		req     string
		version string
		want    string
		changed bool
	}{
		{name: "caret keeps precision", req: "^1.0", version: "2.0.0", want: "^2.0", changed: true},
		{name: "caret full precision", req: "^1.0.0", version: "2.0.0", want: "^2.0.0", changed: true},
		{name: "exact pin", req: "=1.0.0", version: "2.0.0", want: "=2.0.0", changed: true},
		{name: "tilde keeps precision", req: "~0.4", version: "2.0.0", want: "~2.0", changed: true},
		{name: "bare keeps precision", req: "1.0", version: "2.0.0", want: "2.0", changed: true},
		{name: "comparator set collapses to caret", req: ">= 1.0, < 3.0", version: "3.1.0", want: "^3.1.0", changed: true},
		{name: "wildcard untouched", req: "*", changed: false, version: "2.0.0"},
		{name: "already spelled that way", req: "^2.0", version: "2.0.0", changed: false},
		{name: "prerelease spelled in full", req: "^1.2", version: "1.2.4-alpha", want: "^1.2.4-alpha", changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustVersion(t, tt.version)
			got, changed, err := SetRequirement(tt.req, v)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			if !tt.changed {
				return
			}
			assert.Equal(t, tt.want, got)

			// The rewritten requirement must accept the new version.
			ok, err := Matches(got, v)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSetRequirement_RejectsOldVersions(t *testing.T) {
	v := mustVersion(t, "2.0.0")
	got, changed, err := SetRequirement("^1.0", v)
	require.NoError(t, err)
	require.True(t, changed)

	ok, err := Matches(got, mustVersion(t, "2.0.0"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(got, mustVersion(t, "1.9.0"))
	require.NoError(t, err)
	assert.False(t, ok)
}
