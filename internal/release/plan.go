package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"crateship/internal/config"
	"crateship/internal/template"
	"crateship/internal/version"
	"crateship/internal/workspace"
)

// Plan is the immutable release decision for one package. Built once, read
// by every pipeline phase, never modified.
type Plan struct {
	Member *workspace.Package
	Config *config.Config

	// PrevVersion is the version currently in the manifest.
	PrevVersion *semver.Version

	// PrevTag locates the git history boundary of the previous release.
	PrevTag string

	// NextVersion is the version being released. Nil means the package is
	// not part of this release and must never be committed, tagged, or
	// published.
	NextVersion *semver.Version

	// Tag is the rendered release tag, or "" when tagging is disabled or
	// there is no release.
	Tag string

	// PostVersion is the development version committed after the release,
	// or nil when the bump is disabled or the release is a pre-release.
	PostVersion *semver.Version

	// Dependents are the workspace members whose requirement on this
	// package must be reconciled. Populated only when NextVersion is set.
	Dependents []workspace.DependentEdge

	Features config.Features

	// ExcludePaths filters the changed-files warning check: nested member
	// directories plus any configured globs.
	ExcludePaths []string

	// IsRoot marks the workspace root package, which defaults to an
	// unprefixed tag.
	IsRoot bool
}

// Releasing reports whether this plan carries a pending release.
func (p *Plan) Releasing() bool { return p.NextVersion != nil }

// Dir returns the package directory.
func (p *Plan) Dir() string { return p.Member.Dir() }

// ManifestPath returns the package manifest path.
func (p *Plan) ManifestPath() string { return p.Member.ManifestPath }

// Builder constructs release plans. One Builder serves the whole run; the
// per-package state lives in the returned plans.
type Builder struct {
	Meta *workspace.Metadata

	// Target is the requested bump level or absolute version.
	Target version.Target

	// Metadata is appended as build metadata to the decided version.
	Metadata string

	// Isolated skips the ambient config files and starts from defaults.
	Isolated bool

	// CustomConfig is the --config file layer, above the file sources.
	CustomConfig *config.Config

	// Overrides is the flag layer, above everything except publish=false.
	Overrides *config.Config

	// PrevTagOverride replaces the rendered previous tag verbatim. It is
	// trusted as given; no existence check is made.
	PrevTagOverride string
}

// Build resolves configuration and computes the plan for member. A nil plan
// with a nil error means the package is configured out of releasing
// entirely.
func (b *Builder) Build(member *workspace.Package) (*Plan, error) {
	cfg, err := b.resolveConfig(member)
	if err != nil {
		return nil, err
	}
	if cfg.ReleaseDisabled() {
		return nil, nil
	}

	prev, err := semver.StrictNewVersion(member.Version)
	if err != nil {
		return nil, fmt.Errorf("package %s has invalid version %q: %w", member.Name, member.Version, err)
	}

	isRoot := samePath(member.Dir(), b.Meta.WorkspaceRoot)

	// The prefix is rendered first so the tag-name template can refer to it
	// via {{prefix}}.
	prefix := (&template.Context{CrateName: member.Name}).Render(cfg.TagPrefixFor(isRoot))

	prevTag := b.PrevTagOverride
	if prevTag == "" {
		prevTag = renderTag(cfg.TagNameTemplate(), &template.Context{
			PrevVersion: prev.String(),
			Version:     prev.String(),
			CrateName:   member.Name,
			Prefix:      prefix,
		})
	}

	next, err := b.Target.Bump(prev, b.Metadata)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", member.Name, err)
	}

	plan := &Plan{
		Member:       member,
		Config:       cfg,
		PrevVersion:  prev,
		PrevTag:      prevTag,
		NextVersion:  next,
		Features:     cfg.FeatureSelection(),
		ExcludePaths: append(b.Meta.ExcludePaths(member), cfg.ExcludePaths...),
		IsRoot:       isRoot,
	}

	if next == nil {
		return plan, nil
	}

	plan.Dependents = b.Meta.Dependents(member)

	if !cfg.TagDisabled() {
		plan.Tag = renderTag(cfg.TagNameTemplate(), &template.Context{
			PrevVersion: prev.String(),
			Version:     next.String(),
			CrateName:   member.Name,
			Prefix:      prefix,
		})
	}

	if !cfg.DevVersionDisabled() {
		post, err := version.PostRelease(next, cfg.DevExt())
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", member.Name, err)
		}
		plan.PostVersion = post
	}
	return plan, nil
}

func (b *Builder) resolveConfig(member *workspace.Package) (*config.Config, error) {
	cfg := &config.Config{}
	if !b.Isolated {
		resolved, err := config.ResolvePackageConfig(b.Meta.WorkspaceRoot, member.ManifestPath)
		if err != nil {
			return nil, err
		}
		cfg = resolved
	}
	cfg.Update(b.CustomConfig)
	cfg.Update(b.Overrides)

	// publish = false in the manifest beats every other layer.
	if _, err := os.Stat(member.ManifestPath); err == nil {
		forcedOff, err := config.PublishForcedOff(member.ManifestPath)
		if err != nil {
			return nil, err
		}
		if forcedOff {
			off := true
			cfg.Update(&config.Config{DisablePublish: &off})
		}
	}
	return cfg, nil
}

// renderTag renders a tag-name template. The prefix placeholder is always
// defined at this point, so an empty prefix substitutes to nothing instead
// of being left literal.
func renderTag(tmpl string, tctx *template.Context) string {
	out := tctx.Render(tmpl)
	if tctx.Prefix == "" {
		out = strings.ReplaceAll(out, "{{prefix}}", "")
	}
	return out
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}
