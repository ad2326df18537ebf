package release

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crateship/internal/config"
	"crateship/internal/version"
	"crateship/internal/workspace"
)

func mustTarget(t *testing.T, s string) version.Target {
	t.Helper()
	target, err := version.ParseTarget(s)
	require.NoError(t, err)
	return target
}

func TestBuilder_AbsoluteRelease(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	b := &Builder{Meta: meta, Target: mustTarget(t, "0.2.0"), Isolated: true}

	plan, err := b.Build(meta.MemberByName("app"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.True(t, plan.Releasing())
	assert.Equal(t, "0.1.0", plan.PrevVersion.String())
	assert.Equal(t, "0.2.0", plan.NextVersion.String())
	// Sub-packages get the crate-name prefix by default.
	assert.Equal(t, "app-v0.1.0", plan.PrevTag)
	assert.Equal(t, "app-v0.2.0", plan.Tag)
	require.NotNil(t, plan.PostVersion)
	assert.Equal(t, "0.2.1-alpha", plan.PostVersion.String())
	assert.Empty(t, plan.Dependents)
}

func TestBuilder_NoReleaseNeeded(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	b := &Builder{Meta: meta, Target: version.DefaultTarget(), Isolated: true}

	// 0.1.0 is already a release; the "release" level is a no-op.
	plan, err := b.Build(meta.MemberByName("app"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.False(t, plan.Releasing())
	assert.Empty(t, plan.Tag)
	assert.Nil(t, plan.PostVersion)
	assert.Empty(t, plan.Dependents)
}

func TestBuilder_RootPackageTagHasNoPrefix(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"packages": []map[string]interface{}{{
			"id": "root", "name": "root", "version": "1.0.0",
			"manifest_path": "/ws/Cargo.toml",
			"dependencies":  []interface{}{},
		}},
		"workspace_members": []string{"root"},
		"workspace_root":    "/ws",
	})
	require.NoError(t, err)
	meta, err := workspace.Parse(raw)
	require.NoError(t, err)

	b := &Builder{Meta: meta, Target: mustTarget(t, "2.0.0"), Isolated: true}
	plan, err := b.Build(meta.MemberByName("root"))
	require.NoError(t, err)

	assert.True(t, plan.IsRoot)
	assert.Equal(t, "v1.0.0", plan.PrevTag)
	assert.Equal(t, "v2.0.0", plan.Tag)
}

func TestBuilder_PrevTagOverrideTrustedVerbatim(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	b := &Builder{
		Meta:            meta,
		Target:          mustTarget(t, "0.2.0"),
		Isolated:        true,
		PrevTagOverride: "my-odd-tag",
	}

	plan, err := b.Build(meta.MemberByName("app"))
	require.NoError(t, err)
	assert.Equal(t, "my-odd-tag", plan.PrevTag)
	// The release tag is still rendered normally.
	assert.Equal(t, "app-v0.2.0", plan.Tag)
}

func TestBuilder_DisableReleaseSkips(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	yes := true
	b := &Builder{
		Meta:      meta,
		Target:    mustTarget(t, "0.2.0"),
		Isolated:  true,
		Overrides: &config.Config{DisableRelease: &yes},
	}

	plan, err := b.Build(meta.MemberByName("app"))
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestBuilder_DependentsOnlyWhenReleasing(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{
		"app":  {"core"},
		"core": nil,
	})

	b := &Builder{Meta: meta, Target: mustTarget(t, "2.0.0"), Isolated: true}
	plan, err := b.Build(meta.MemberByName("core"))
	require.NoError(t, err)
	require.Len(t, plan.Dependents, 1)
	assert.Equal(t, "app", plan.Dependents[0].Member.Name)

	b.Target = version.DefaultTarget()
	plan, err = b.Build(meta.MemberByName("core"))
	require.NoError(t, err)
	assert.Empty(t, plan.Dependents)
}

func TestBuilder_SmallerAbsoluteVersionIsFatal(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	b := &Builder{Meta: meta, Target: mustTarget(t, "0.0.1"), Isolated: true}

	_, err := b.Build(meta.MemberByName("app"))
	assert.ErrorIs(t, err, version.ErrUnsupportedVersionRequest)
}

func TestBuilder_FlagOverridesWin(t *testing.T) {
	meta := metaFixture(t, "/ws", map[string][]string{"app": nil})
	tagName := "{{crate_name}}/{{version}}"
	noDev := true
	b := &Builder{
		Meta:     meta,
		Target:   mustTarget(t, "0.2.0"),
		Isolated: true,
		Overrides: &config.Config{
			TagName:      &tagName,
			NoDevVersion: &noDev,
		},
	}

	plan, err := b.Build(meta.MemberByName("app"))
	require.NoError(t, err)
	assert.Equal(t, "app/0.2.0", plan.Tag)
	assert.Nil(t, plan.PostVersion)
}
