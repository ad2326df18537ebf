package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	assert.False(t, cfg.ReleaseDisabled())
	assert.False(t, cfg.PublishDisabled())
	assert.False(t, cfg.TagDisabled())
	assert.False(t, cfg.PushDisabled())
	assert.Equal(t, "origin", cfg.Remote())
	assert.Equal(t, "", cfg.RegistryName())
	assert.Equal(t, DependentFix, cfg.Policy())
	assert.Equal(t, "{{prefix}}v{{version}}", cfg.TagNameTemplate())
	assert.Equal(t, "", cfg.TagPrefixFor(true))
	assert.Equal(t, "{{crate_name}}-", cfg.TagPrefixFor(false))
	assert.Equal(t, "alpha", cfg.DevExt())
	assert.False(t, cfg.DevVersionDisabled())
	assert.False(t, cfg.CommitsConsolidated())
	assert.False(t, cfg.PushesConsolidated())
	assert.False(t, cfg.FeatureSelection().All)
	assert.Empty(t, cfg.FeatureSelection().Selected)
}

func TestUpdate_HigherLayerWins(t *testing.T) {
	base := &Config{
		DisableTag:    boolPtr(true),
		PushRemote:    strPtr("origin"),
		DevVersionExt: strPtr("dev"),
	}
	over := &Config{
		PushRemote: strPtr("upstream"),
		SignTag:    boolPtr(true),
	}

	base.Update(over)

	assert.Equal(t, "upstream", base.Remote())
	assert.True(t, base.TagSigned())
	// Fields the overlay did not set are untouched.
	assert.True(t, base.TagDisabled())
	assert.Equal(t, "dev", base.DevExt())
}

func TestUpdate_NilOverlayIsNoop(t *testing.T) {
	base := &Config{SignCommit: boolPtr(true)}
	base.Update(nil)
	assert.True(t, base.CommitSigned())
}

func TestParseDependentVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    DependentVersion
		wantErr bool
	}{
		{in: "ignore", want: DependentIgnore},
		{in: "Warn", want: DependentWarn},
		{in: "ERROR", want: DependentError},
		{in: "fix", want: DependentFix},
		{in: "upgrade", want: DependentUpgrade},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDependentVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePackageConfig_Layering(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "member")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	writeFile := func(path, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	writeFile(filepath.Join(root, "release.toml"), `
sign-tag = true
dev-version-ext = "dev"
push-remote = "upstream"
`)
	writeFile(filepath.Join(root, "Cargo.toml"), `
[workspace]
members = ["member"]

[workspace.metadata.release]
consolidate-commits = true
push-remote = "ws-remote"
`)
	writeFile(filepath.Join(pkgDir, "release.toml"), `
dev-version-ext = "next"
`)
	writeFile(filepath.Join(pkgDir, "Cargo.toml"), `
[package]
name = "member"
version = "0.1.0"

[package.metadata.release]
dependent-version = "error"
tag-prefix = ""
`)

	cfg, err := ResolvePackageConfig(root, filepath.Join(pkgDir, "Cargo.toml"))
	require.NoError(t, err)

	// Workspace file, overridden by workspace manifest metadata.
	assert.Equal(t, "ws-remote", cfg.Remote())
	assert.True(t, cfg.CommitsConsolidated())
	assert.True(t, cfg.TagSigned())
	// Package file overrides workspace.
	assert.Equal(t, "next", cfg.DevExt())
	// Package manifest metadata is the highest file layer.
	assert.Equal(t, DependentError, cfg.Policy())
	assert.Equal(t, "", cfg.TagPrefixFor(false))
}

func TestResolveCustomConfig_MissingIsError(t *testing.T) {
	_, err := ResolveCustomConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestPublishForcedOff(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "publish false",
			content: "[package]\nname = \"a\"\nversion = \"0.1.0\"\npublish = false\n",
			want:    true,
		},
		{
			name:    "publish true",
			content: "[package]\nname = \"a\"\nversion = \"0.1.0\"\npublish = true\n",
			want:    false,
		},
		{
			name:    "publish unset",
			content: "[package]\nname = \"a\"\nversion = \"0.1.0\"\n",
			want:    false,
		},
		{
			name:    "publish registry list",
			content: "[package]\nname = \"a\"\nversion = \"0.1.0\"\npublish = [\"my-registry\"]\n",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(manifest, []byte(tt.content), 0o644))
			got, err := PublishForcedOff(manifest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHook_UnmarshalForms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.toml")

	require.NoError(t, os.WriteFile(path, []byte(`pre-release-hook = "scripts/check.sh --fast"`+"\n"), 0o644))
	cfg, err := loadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.PreReleaseHook)
	assert.Equal(t, []string{"scripts/check.sh", "--fast"}, cfg.PreReleaseHook.Args)

	require.NoError(t, os.WriteFile(path, []byte(`pre-release-hook = ["scripts/check.sh", "--slow mode"]`+"\n"), 0o644))
	cfg, err = loadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.PreReleaseHook)
	assert.Equal(t, []string{"scripts/check.sh", "--slow mode"}, cfg.PreReleaseHook.Args)

	// Quoting in the string form keeps an argument with spaces intact.
	require.NoError(t, os.WriteFile(path, []byte(`pre-release-hook = "scripts/check.sh --message 'final sweep'"`+"\n"), 0o644))
	cfg, err = loadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.PreReleaseHook)
	assert.Equal(t, []string{"scripts/check.sh", "--message", "final sweep"}, cfg.PreReleaseHook.Args)
}

func TestReplacementDecoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[pre-release-replacements]]
file = "CHANGELOG.md"
search = "Unreleased"
replace = "{{version}}"
exactly = 1

[[post-release-replacements]]
file = "README.md"
search = "\\d+\\.\\d+\\.\\d+"
replace = "{{next_version}}"
prerelease = true
`), 0o644))

	cfg, err := loadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.PreReleaseReplacements, 1)
	r := cfg.PreReleaseReplacements[0]
	assert.Equal(t, "CHANGELOG.md", r.File)
	require.NotNil(t, r.Exactly)
	assert.Equal(t, 1, *r.Exactly)
	assert.False(t, r.Prerelease)

	require.Len(t, cfg.PostReleaseReplacements, 1)
	assert.True(t, cfg.PostReleaseReplacements[0].Prerelease)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CRATESHIP_TOKEN", "sekrit")
	t.Setenv("PUBLISH_GRACE_SLEEP", "9")

	env := LoadEnv()
	assert.Equal(t, "sekrit", env.Token)
	assert.Equal(t, "9s", env.PublishGraceSleep.String())
	assert.Equal(t, "git", env.GitBin)
	assert.Equal(t, "cargo", env.CargoBin)
}
