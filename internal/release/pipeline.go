package release

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"crateship/internal/config"
	"crateship/internal/replace"
	"crateship/internal/shell"
	"crateship/internal/template"
)

// lockFileName is ignored by the "anything changed since the last tag"
// check: the lock file alone changing is a known benign case.
const lockFileName = "Cargo.lock"

// Pipeline executes built plans in seven strictly ordered phases:
// preflight, confirmation, version commit, publish, tag, post-release bump,
// push. No phase re-executes or rolls back a prior one; aborting at phase N
// leaves the effects of earlier phases in place.
type Pipeline struct {
	Git      Git
	Registry Registry

	// Sh runs the pre-release hook.
	Sh *shell.Runner

	// WorkspaceRoot anchors the consolidated operations and the hook
	// environment.
	WorkspaceRoot string

	// WSConfig is the workspace-level configuration, consulted for the
	// consolidation flags and the shared commit messages.
	WSConfig *config.Config

	Logger *log.Logger

	// Confirm presents the plans and returns whether to proceed. Nil means
	// always proceed.
	Confirm func(plans []*Plan) bool

	// Date is the run date (YYYY-MM-DD), captured once so every rendered
	// template within one run agrees on it.
	Date string

	DryRun    bool
	NoConfirm bool

	// Token is the registry token forwarded to publish calls.
	Token string

	// PublishTimeout bounds the index poll after a publish.
	PublishTimeout time.Duration

	// GraceSleep is the extra delay after the index shows the new version.
	GraceSleep time.Duration

	// Sleep is swapped out in tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Run executes the pipeline and returns the process exit code. A non-nil
// error is a fatal condition (code CodeFatal); every ordinary abort comes
// back as a code with a nil error.
func (p *Pipeline) Run(ctx context.Context, plans []*Plan) (int, error) {
	if p.Date == "" {
		p.Date = time.Now().Format("2006-01-02")
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}

	if code, err := p.preflight(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}
	if !p.confirm(plans) {
		p.Logger.Info("release aborted by user")
		return CodeSuccess, nil
	}
	if code, err := p.versionCommit(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}
	if code, err := p.publish(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}
	if code, err := p.tag(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}
	if code, err := p.postReleaseBump(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}
	if code, err := p.push(ctx, plans); code != CodeSuccess || err != nil {
		return code, err
	}

	p.Logger.Info("release finished", "packages", len(releasing(plans)))
	return CodeSuccess, nil
}

func releasing(plans []*Plan) []*Plan {
	var out []*Plan
	for _, plan := range plans {
		if plan.Releasing() {
			out = append(out, plan)
		}
	}
	return out
}

// preflight verifies git is usable, the tree is clean, and warns about
// suspicious conditions: nothing changed since the previous tag, detached
// head, local branch behind the remote. Dirtiness is a hard abort unless
// dry-run is active.
func (p *Pipeline) preflight(ctx context.Context, plans []*Plan) (int, error) {
	if err := p.Git.VersionCheck(ctx); err != nil {
		return CodeFatal, err
	}

	dirs := []string{p.WorkspaceRoot}
	if !p.WSConfig.CommitsConsolidated() {
		dirs = nil
		for _, plan := range plans {
			dirs = append(dirs, plan.Dir())
		}
	}
	// Every dirty directory is reported before aborting, so one run shows
	// the full cleanup list.
	var dirtyDirs []string
	for _, dir := range dirs {
		dirty, err := p.Git.IsDirty(ctx, dir)
		if err != nil {
			return CodeFatal, err
		}
		if !dirty {
			continue
		}
		if p.DryRun {
			p.Logger.Warn("working tree is dirty, continuing because of dry-run", "dir", dir)
			continue
		}
		p.Logger.Error("working tree is dirty, commit or stash before releasing", "dir", dir)
		dirtyDirs = append(dirtyDirs, dir)
	}
	if len(dirtyDirs) > 0 {
		return CodeDirty, nil
	}

	for _, plan := range releasing(plans) {
		files, ok, err := p.Git.ChangedFiles(ctx, plan.Dir(), plan.PrevTag)
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Debug("previous tag not found, skipping change check",
				"package", plan.Member.Name, "tag", plan.PrevTag)
			continue
		}
		if len(significantChanges(files, plan.ExcludePaths)) == 0 {
			p.Logger.Warn("no changes since the last release",
				"package", plan.Member.Name, "tag", plan.PrevTag)
		}
	}

	branch, err := p.Git.CurrentBranch(ctx, p.WorkspaceRoot)
	if err != nil {
		return CodeFatal, err
	}
	if branch == "HEAD" {
		p.Logger.Warn("releasing from a detached HEAD")
	}
	remote := p.WSConfig.Remote()
	if err := p.Git.Fetch(ctx, p.WorkspaceRoot, remote, branch); err != nil {
		p.Logger.Warn("could not fetch remote state", "remote", remote, "err", err)
		return CodeSuccess, nil
	}
	behind, err := p.Git.IsBehindRemote(ctx, p.WorkspaceRoot, remote, branch)
	if err != nil {
		return CodeFatal, err
	}
	if behind {
		p.Logger.Warn("local branch is behind the remote", "remote", remote, "branch", branch)
	}
	return CodeSuccess, nil
}

// significantChanges drops the lock file and excluded paths from a changed
// file list. Files and excludes share one frame: both are relative to the
// package directory (ChangedFiles queries with --relative, nested member
// excludes come from workspace.ExcludePaths, configured excludes are
// package-relative globs by contract).
func significantChanges(files, excludes []string) []string {
	var out []string
	for _, f := range files {
		if filepath.Base(f) == lockFileName {
			continue
		}
		if !excludedPath(f, excludes) {
			out = append(out, f)
		}
	}
	return out
}

// excludedPath reports whether f is covered by any exclude, either as a
// directory containing f or as a glob matching it.
func excludedPath(f string, excludes []string) bool {
	for _, ex := range excludes {
		if f == ex || strings.HasPrefix(f, ex+"/") {
			return true
		}
		if ok, err := doublestar.Match(ex, f); err == nil && ok {
			return true
		}
	}
	return false
}

// confirm asks the user to approve the planned releases. Dry runs and
// --no-confirm skip the prompt.
func (p *Pipeline) confirm(plans []*Plan) bool {
	if p.DryRun || p.NoConfirm || p.Confirm == nil {
		return true
	}
	return p.Confirm(plans)
}

// versionCommit rewrites manifests to the new versions, reconciles
// dependents, applies the pre-release replacements, runs the hook, and
// commits, per package or once for the batch.
func (p *Pipeline) versionCommit(ctx context.Context, plans []*Plan) (int, error) {
	pending := releasing(plans)
	for _, plan := range pending {
		next := plan.NextVersion

		if p.DryRun {
			p.Logger.Info("would update package version",
				"package", plan.Member.Name, "from", plan.PrevVersion, "to", next)
		} else {
			p.Logger.Info("updating package version",
				"package", plan.Member.Name, "from", plan.PrevVersion, "to", next)
			if err := p.Registry.SetPackageVersion(plan.ManifestPath(), next.String()); err != nil {
				return CodeFatal, err
			}
		}

		if err := reconcileDependents(plan, next, p.Registry, p.Logger, p.DryRun); err != nil {
			return CodeFatal, err
		}

		if _, err := p.Registry.UpdateLock(ctx, plan.ManifestPath(), p.DryRun); err != nil {
			return CodeFatal, err
		}

		tctx := p.templateContext(plan, next)
		err := replace.Apply(plan.Config.PreReleaseReplacements, tctx, plan.Dir(),
			next.Prerelease() != "", p.DryRun, p.Logger)
		if err != nil {
			return CodeFatal, err
		}

		if code, err := p.runHook(ctx, plan); code != CodeSuccess || err != nil {
			return code, err
		}

		if !p.WSConfig.CommitsConsolidated() {
			msg := tctx.Render(plan.Config.PreReleaseMessage())
			ok, err := p.Git.CommitAll(ctx, plan.Dir(), msg, plan.Config.CommitSigned(), p.DryRun)
			if err != nil {
				return CodeFatal, err
			}
			if !ok {
				p.Logger.Error("failed to commit version changes", "package", plan.Member.Name)
				return CodeCommit, nil
			}
		}
	}

	if p.WSConfig.CommitsConsolidated() && len(pending) > 0 {
		msg := (&template.Context{Date: p.Date}).Render(p.WSConfig.PreReleaseMessage())
		ok, err := p.Git.CommitAll(ctx, p.WorkspaceRoot, msg, p.WSConfig.CommitSigned(), p.DryRun)
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Error("failed to commit version changes")
			return CodeCommit, nil
		}
	}
	return CodeSuccess, nil
}

// runHook executes the pre-release hook. The hook always runs for real,
// even in dry-run: it receives DRY_RUN in its environment and must limit
// its own side effects.
func (p *Pipeline) runHook(ctx context.Context, plan *Plan) (int, error) {
	hook := plan.Config.PreReleaseHook
	if hook == nil || len(hook.Args) == 0 {
		return CodeSuccess, nil
	}

	env := map[string]string{
		"PREV_VERSION":   plan.PrevVersion.String(),
		"NEW_VERSION":    plan.NextVersion.String(),
		"DRY_RUN":        fmt.Sprintf("%v", p.DryRun),
		"CRATE_NAME":     plan.Member.Name,
		"WORKSPACE_ROOT": p.WorkspaceRoot,
		"CRATE_ROOT":     plan.Dir(),
	}
	ok, err := p.Sh.CallWithEnv(ctx, hook.Args, env, plan.Dir(), false)
	if err != nil {
		return CodeFatal, err
	}
	if !ok {
		p.Logger.Error("pre-release hook rejected the release", "package", plan.Member.Name)
		return CodeHook, nil
	}
	return CodeSuccess, nil
}

// publish pushes each release to the registry and, for the default public
// registry, waits until the index shows the new version plus a grace delay.
func (p *Pipeline) publish(ctx context.Context, plans []*Plan) (int, error) {
	for _, plan := range releasing(plans) {
		if plan.Config.PublishDisabled() {
			p.Logger.Debug("publish disabled", "package", plan.Member.Name)
			continue
		}

		token := plan.Config.TokenValue()
		if token == "" {
			token = p.Token
		}
		ok, err := p.Registry.Publish(ctx, PublishRequest{
			ManifestPath: plan.ManifestPath(),
			Features:     plan.Features,
			Registry:     plan.Config.RegistryName(),
			Token:        token,
			DryRun:       p.DryRun,
		})
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Error("publish failed", "package", plan.Member.Name)
			return CodePublish, nil
		}

		// The index wait only makes sense for the default public registry,
		// and a dry run published nothing to wait for.
		if p.DryRun || plan.Config.RegistryName() != "" {
			continue
		}
		next := plan.NextVersion.String()
		p.Logger.Info("waiting for the registry index", "package", plan.Member.Name, "version", next)
		if err := p.Registry.WaitForPublish(ctx, plan.Member.Name, next, p.PublishTimeout); err != nil {
			p.Logger.Error("registry index never showed the new version",
				"package", plan.Member.Name, "version", next, "err", err)
			return CodePublish, nil
		}
		if p.GraceSleep > 0 {
			p.Logger.Debug("grace sleep", "duration", p.GraceSleep)
			p.Sleep(p.GraceSleep)
		}
	}
	return CodeSuccess, nil
}

// tag creates the annotated release tags.
func (p *Pipeline) tag(ctx context.Context, plans []*Plan) (int, error) {
	for _, plan := range releasing(plans) {
		if plan.Tag == "" {
			continue
		}
		tctx := p.templateContext(plan, plan.NextVersion)
		tctx.TagName = plan.Tag
		msg := tctx.Render(plan.Config.TagMessageTemplate())

		ok, err := p.Git.Tag(ctx, plan.Dir(), plan.Tag, msg, plan.Config.TagSigned(), p.DryRun)
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Error("failed to create tag", "package", plan.Member.Name, "tag", plan.Tag)
			return CodeTag, nil
		}
	}
	return CodeSuccess, nil
}

// postReleaseBump moves released packages onto their next development
// version and commits, mirroring the version-commit phase's consolidation.
func (p *Pipeline) postReleaseBump(ctx context.Context, plans []*Plan) (int, error) {
	var bumped []*Plan
	for _, plan := range plans {
		if plan.PostVersion == nil {
			continue
		}
		bumped = append(bumped, plan)
		post := plan.PostVersion

		if err := reconcileDependents(plan, post, p.Registry, p.Logger, p.DryRun); err != nil {
			return CodeFatal, err
		}

		if p.DryRun {
			p.Logger.Info("would start next development iteration",
				"package", plan.Member.Name, "version", post)
		} else {
			p.Logger.Info("starting next development iteration",
				"package", plan.Member.Name, "version", post)
			if err := p.Registry.SetPackageVersion(plan.ManifestPath(), post.String()); err != nil {
				return CodeFatal, err
			}
		}

		if _, err := p.Registry.UpdateLock(ctx, plan.ManifestPath(), p.DryRun); err != nil {
			return CodeFatal, err
		}

		tctx := p.templateContext(plan, plan.NextVersion)
		tctx.NextVersion = post.String()
		// Post-release replacements apply unconditionally, so no entry is
		// filtered by pre-release status here.
		err := replace.Apply(plan.Config.PostReleaseReplacements, tctx, plan.Dir(), false, p.DryRun, p.Logger)
		if err != nil {
			return CodeFatal, err
		}

		if !p.WSConfig.CommitsConsolidated() {
			msg := tctx.Render(plan.Config.PostReleaseMessage())
			ok, err := p.Git.CommitAll(ctx, plan.Dir(), msg, plan.Config.CommitSigned(), p.DryRun)
			if err != nil {
				return CodeFatal, err
			}
			if !ok {
				p.Logger.Error("failed to commit development version", "package", plan.Member.Name)
				return CodePostCommit, nil
			}
		}
	}

	if p.WSConfig.CommitsConsolidated() && len(bumped) > 0 {
		msg := (&template.Context{Date: p.Date}).Render(p.WSConfig.PostReleaseMessage())
		ok, err := p.Git.CommitAll(ctx, p.WorkspaceRoot, msg, p.WSConfig.CommitSigned(), p.DryRun)
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Error("failed to commit development versions")
			return CodePostCommit, nil
		}
	}
	return CodeSuccess, nil
}

// push sends the created tags and then the branch, per package or once for
// the workspace.
func (p *Pipeline) push(ctx context.Context, plans []*Plan) (int, error) {
	var pushed []*Plan
	for _, plan := range releasing(plans) {
		if plan.Config.PushDisabled() {
			p.Logger.Debug("push disabled", "package", plan.Member.Name)
			continue
		}
		pushed = append(pushed, plan)

		if plan.Tag != "" {
			ok, err := p.Git.PushTag(ctx, plan.Dir(), plan.Config.Remote(), plan.Tag, p.DryRun)
			if err != nil {
				return CodeFatal, err
			}
			if !ok {
				p.Logger.Error("failed to push tag", "package", plan.Member.Name, "tag", plan.Tag)
				return CodePush, nil
			}
		}

		if !p.WSConfig.PushesConsolidated() {
			ok, err := p.Git.Push(ctx, plan.Dir(), plan.Config.Remote(), plan.Config.PushOptions, p.DryRun)
			if err != nil {
				return CodeFatal, err
			}
			if !ok {
				p.Logger.Error("failed to push", "package", plan.Member.Name)
				return CodePush, nil
			}
		}
	}

	if p.WSConfig.PushesConsolidated() && len(pushed) > 0 {
		ok, err := p.Git.Push(ctx, p.WorkspaceRoot, p.WSConfig.Remote(), p.WSConfig.PushOptions, p.DryRun)
		if err != nil {
			return CodeFatal, err
		}
		if !ok {
			p.Logger.Error("failed to push")
			return CodePush, nil
		}
	}
	return CodeSuccess, nil
}

// templateContext builds the per-package context for the given acting
// version. Callers add phase-specific fields (TagName, NextVersion) on top.
func (p *Pipeline) templateContext(plan *Plan, acting *semver.Version) *template.Context {
	tctx := &template.Context{
		PrevVersion: plan.PrevVersion.String(),
		CrateName:   plan.Member.Name,
		Date:        p.Date,
	}
	if acting != nil {
		tctx.Version = acting.String()
	}
	return tctx
}
