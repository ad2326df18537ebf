package release

import (
	"bytes"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crateship/internal/config"
	"crateship/internal/workspace"
)

func reconcilePlan(policy config.DependentVersion, reqs ...string) *Plan {
	var deps []workspace.DependentEdge
	for i, req := range reqs {
		deps = append(deps, workspace.DependentEdge{
			Member: &workspace.Package{
				Name:         string(rune('a' + i)),
				ManifestPath: "/ws/" + string(rune('a'+i)) + "/Cargo.toml",
			},
			Req: req,
		})
	}
	return &Plan{
		Member:     &workspace.Package{Name: "core", ManifestPath: "/ws/core/Cargo.toml"},
		Config:     &config.Config{DependentVersion: &policy},
		Dependents: deps,
	}
}

func reconcileLogger() *log.Logger {
	return log.NewWithOptions(&bytes.Buffer{}, log.Options{Level: log.DebugLevel})
}

func TestReconcile_FixRewritesMismatches(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentFix, "^1.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)
	assert.Equal(t, "^2.0", reg.reqs["/ws/a/Cargo.toml core"])
}

func TestReconcile_FixLeavesMatchesAlone(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentFix, "^1.0")

	err := reconcileDependents(plan, semver.MustParse("1.5.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)
	assert.Empty(t, reg.reqs)
}

func TestReconcile_UpgradeRewritesEvenMatches(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentUpgrade, "^1.0")

	err := reconcileDependents(plan, semver.MustParse("1.5.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)
	assert.Equal(t, "^1.5", reg.reqs["/ws/a/Cargo.toml core"])
}

func TestReconcile_WarnNeverWrites(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentWarn, "=1.0.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)
	assert.Empty(t, reg.reqs)
}

func TestReconcile_IgnoreDoesNothing(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentIgnore, "=1.0.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)
	assert.Empty(t, reg.reqs)
}

func TestReconcile_ErrorAggregatesAllConflicts(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentError, "=1.0.0", "^1.0", "^2.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), false)
	require.Error(t, err)
	// Both mismatching dependents appear in the single failure; the
	// compatible one does not.
	assert.Contains(t, err.Error(), "a requires core =1.0.0")
	assert.Contains(t, err.Error(), "b requires core ^1.0")
	assert.NotContains(t, err.Error(), "c requires")
	assert.Empty(t, reg.reqs)
}

func TestReconcile_DryRunComputesButDoesNotWrite(t *testing.T) {
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentFix, "^1.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), true)
	require.NoError(t, err)
	assert.Empty(t, reg.reqs)
}

func TestReconcile_FixResultExcludesOldVersions(t *testing.T) {
	// ^1.0 rewritten for 2.0.0 must accept 2.0.0 and reject 1.9.0.
	reg := newMockRegistry()
	plan := reconcilePlan(config.DependentFix, "^1.0")

	err := reconcileDependents(plan, semver.MustParse("2.0.0"), reg, reconcileLogger(), false)
	require.NoError(t, err)

	rewritten := reg.reqs["/ws/a/Cargo.toml core"]
	require.NotEmpty(t, rewritten)

	c, err := semver.NewConstraint(rewritten)
	require.NoError(t, err)
	assert.True(t, c.Check(semver.MustParse("2.0.0")))
	assert.False(t, c.Check(semver.MustParse("1.9.0")))
}
