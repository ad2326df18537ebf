// Package config resolves release configuration for the workspace and for
// each package.
//
// Configuration is layered. Per package, sources are merged lowest to
// highest priority:
//
//  1. built-in defaults (the accessor methods below)
//  2. workspace sources: $root/release.toml, $root/Cargo.toml [workspace.metadata.release]
//  3. package sources: $pkg/release.toml, $pkg/Cargo.toml [package.metadata.release]
//  4. an explicit --config file
//  5. command-line flags
//  6. publish = false in the package's Cargo.toml, which forces publishing off
//
// [Config] is an optional-field snapshot: nil means "not set here" and
// [Config.Update] copies only set fields, so merging is explicit and no
// shared config object is ever mutated in place.
package config

import (
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// DependentVersion selects how a workspace dependent's version requirement
// on a released package is reconciled.
type DependentVersion int

const (
	// DependentIgnore leaves mismatched requirements alone.
	DependentIgnore DependentVersion = iota
	// DependentWarn logs mismatches and continues.
	DependentWarn
	// DependentError logs mismatches and fails the run after all dependents
	// have been checked.
	DependentError
	// DependentFix rewrites mismatched requirements to accept the new version.
	DependentFix
	// DependentUpgrade rewrites every requirement, matching or not.
	DependentUpgrade
)

var dependentVersionNames = map[DependentVersion]string{
	DependentIgnore:  "ignore",
	DependentWarn:    "warn",
	DependentError:   "error",
	DependentFix:     "fix",
	DependentUpgrade: "upgrade",
}

// ParseDependentVersion parses a policy name, case-insensitively.
func ParseDependentVersion(s string) (DependentVersion, error) {
	for p, name := range dependentVersionNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown dependent-version policy %q", s)
}

func (d DependentVersion) String() string { return dependentVersionNames[d] }

// UnmarshalText lets the policy appear as a plain string in TOML files.
func (d *DependentVersion) UnmarshalText(text []byte) error {
	p, err := ParseDependentVersion(string(text))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// Replacement is one configured search-and-replace applied to a project
// file during the version-commit or post-release phase. Search is a regular
// expression; Replace is rendered through the template context first.
type Replacement struct {
	File    string `toml:"file"`
	Search  string `toml:"search"`
	Replace string `toml:"replace"`

	// Min, Max, and Exactly bound how many times Search must match.
	// Min defaults to 1: a replacement that matches nothing is an error.
	Min     *int `toml:"min"`
	Max     *int `toml:"max"`
	Exactly *int `toml:"exactly"`

	// Prerelease marks entries that also apply when releasing a
	// pre-release version. During a pre-release, entries without this flag
	// are skipped.
	Prerelease bool `toml:"prerelease"`
}

// Hook is the pre-release hook command. In TOML it may be written as a
// single string or as an argv list.
type Hook struct {
	Args []string
}

// UnmarshalTOML accepts both the string and the array form. The string form
// is split with shell quoting rules, so a quoted argument stays one
// argument.
func (h *Hook) UnmarshalTOML(v interface{}) error {
	switch t := v.(type) {
	case string:
		args, err := shellwords.Parse(t)
		if err != nil {
			return fmt.Errorf("pre-release-hook: %w", err)
		}
		h.Args = args
		return nil
	case []interface{}:
		args := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("pre-release-hook entries must be strings, got %T", e)
			}
			args = append(args, s)
		}
		h.Args = args
		return nil
	default:
		return fmt.Errorf("pre-release-hook must be a string or an array of strings, got %T", v)
	}
}

// Features is the feature selection forwarded to the registry publish call.
type Features struct {
	// All requests --all-features.
	All bool
	// Selected is the explicit feature list. Empty with All false means no
	// feature flags at all.
	Selected []string
}

// Config is one layer of release configuration. Every field is optional;
// nil (or an empty slice) means the layer does not set the value.
type Config struct {
	DisableRelease *bool `toml:"disable-release"`
	DisablePublish *bool `toml:"disable-publish"`
	DisableTag     *bool `toml:"disable-tag"`
	DisablePush    *bool `toml:"disable-push"`

	SignCommit  *bool    `toml:"sign-commit"`
	SignTag     *bool    `toml:"sign-tag"`
	PushRemote  *string  `toml:"push-remote"`
	PushOptions []string `toml:"push-options"`
	Registry    *string  `toml:"registry"`

	DependentVersion *DependentVersion `toml:"dependent-version"`

	TagPrefix  *string `toml:"tag-prefix"`
	TagName    *string `toml:"tag-name"`
	TagMessage *string `toml:"tag-message"`

	PreReleaseCommitMessage  *string `toml:"pre-release-commit-message"`
	PostReleaseCommitMessage *string `toml:"post-release-commit-message"`

	DevVersionExt *string `toml:"dev-version-ext"`
	NoDevVersion  *bool   `toml:"no-dev-version"`

	PreReleaseReplacements  []Replacement `toml:"pre-release-replacements"`
	PostReleaseReplacements []Replacement `toml:"post-release-replacements"`
	PreReleaseHook          *Hook         `toml:"pre-release-hook"`

	ExcludePaths []string `toml:"exclude-paths"`

	EnableFeatures    []string `toml:"enable-features"`
	EnableAllFeatures *bool    `toml:"enable-all-features"`

	ConsolidateCommits *bool `toml:"consolidate-commits"`
	ConsolidatePushes  *bool `toml:"consolidate-pushes"`

	// Token is the registry token. Only settable via flag or environment,
	// never from checked-in files.
	Token *string `toml:"-"`
}

// Update overlays the set fields of o onto c. o wins for every field it
// sets; unset fields of o leave c untouched.
func (c *Config) Update(o *Config) {
	if o == nil {
		return
	}
	if o.DisableRelease != nil {
		c.DisableRelease = o.DisableRelease
	}
	if o.DisablePublish != nil {
		c.DisablePublish = o.DisablePublish
	}
	if o.DisableTag != nil {
		c.DisableTag = o.DisableTag
	}
	if o.DisablePush != nil {
		c.DisablePush = o.DisablePush
	}
	if o.SignCommit != nil {
		c.SignCommit = o.SignCommit
	}
	if o.SignTag != nil {
		c.SignTag = o.SignTag
	}
	if o.PushRemote != nil {
		c.PushRemote = o.PushRemote
	}
	if len(o.PushOptions) > 0 {
		c.PushOptions = o.PushOptions
	}
	if o.Registry != nil {
		c.Registry = o.Registry
	}
	if o.DependentVersion != nil {
		c.DependentVersion = o.DependentVersion
	}
	if o.TagPrefix != nil {
		c.TagPrefix = o.TagPrefix
	}
	if o.TagName != nil {
		c.TagName = o.TagName
	}
	if o.TagMessage != nil {
		c.TagMessage = o.TagMessage
	}
	if o.PreReleaseCommitMessage != nil {
		c.PreReleaseCommitMessage = o.PreReleaseCommitMessage
	}
	if o.PostReleaseCommitMessage != nil {
		c.PostReleaseCommitMessage = o.PostReleaseCommitMessage
	}
	if o.DevVersionExt != nil {
		c.DevVersionExt = o.DevVersionExt
	}
	if o.NoDevVersion != nil {
		c.NoDevVersion = o.NoDevVersion
	}
	if len(o.PreReleaseReplacements) > 0 {
		c.PreReleaseReplacements = o.PreReleaseReplacements
	}
	if len(o.PostReleaseReplacements) > 0 {
		c.PostReleaseReplacements = o.PostReleaseReplacements
	}
	if o.PreReleaseHook != nil {
		c.PreReleaseHook = o.PreReleaseHook
	}
	if len(o.ExcludePaths) > 0 {
		c.ExcludePaths = o.ExcludePaths
	}
	if len(o.EnableFeatures) > 0 {
		c.EnableFeatures = o.EnableFeatures
	}
	if o.EnableAllFeatures != nil {
		c.EnableAllFeatures = o.EnableAllFeatures
	}
	if o.ConsolidateCommits != nil {
		c.ConsolidateCommits = o.ConsolidateCommits
	}
	if o.ConsolidatePushes != nil {
		c.ConsolidatePushes = o.ConsolidatePushes
	}
	if o.Token != nil {
		c.Token = o.Token
	}
}

// Built-in defaults.
const (
	defaultTagName        = "{{prefix}}v{{version}}"
	defaultSubTagPrefix   = "{{crate_name}}-"
	defaultTagMessage     = "chore: release {{crate_name}} version {{version}}"
	defaultPreMessage     = "chore: release version {{version}}"
	defaultPostMessage    = "chore: start next development iteration {{next_version}}"
	defaultDevVersionExt  = "alpha"
	defaultPushRemote     = "origin"
	defaultDependentValue = DependentFix
)

func boolOf(p *bool) bool {
	return p != nil && *p
}

// ReleaseDisabled reports whether this package is excluded from releasing
// entirely.
func (c *Config) ReleaseDisabled() bool { return boolOf(c.DisableRelease) }

// PublishDisabled reports whether the registry publish step is skipped.
func (c *Config) PublishDisabled() bool { return boolOf(c.DisablePublish) }

// TagDisabled reports whether tagging is skipped.
func (c *Config) TagDisabled() bool { return boolOf(c.DisableTag) }

// PushDisabled reports whether pushing is skipped.
func (c *Config) PushDisabled() bool { return boolOf(c.DisablePush) }

// CommitSigned reports whether commits are GPG-signed.
func (c *Config) CommitSigned() bool { return boolOf(c.SignCommit) }

// TagSigned reports whether tags are GPG-signed. Tag signing is controlled
// only by sign-tag; sign-commit does not imply it.
func (c *Config) TagSigned() bool { return boolOf(c.SignTag) }

// Remote returns the git remote to push to.
func (c *Config) Remote() string {
	if c.PushRemote != nil {
		return *c.PushRemote
	}
	return defaultPushRemote
}

// RegistryName returns the alternate registry, or "" for the default
// public registry.
func (c *Config) RegistryName() string {
	if c.Registry != nil {
		return *c.Registry
	}
	return ""
}

// Policy returns the dependent-version reconciliation policy.
func (c *Config) Policy() DependentVersion {
	if c.DependentVersion != nil {
		return *c.DependentVersion
	}
	return defaultDependentValue
}

// TagPrefixFor returns the tag prefix template. The workspace root package
// defaults to no prefix; sub-packages default to "{{crate_name}}-".
func (c *Config) TagPrefixFor(isRoot bool) string {
	if c.TagPrefix != nil {
		return *c.TagPrefix
	}
	if isRoot {
		return ""
	}
	return defaultSubTagPrefix
}

// TagNameTemplate returns the tag name template.
func (c *Config) TagNameTemplate() string {
	if c.TagName != nil {
		return *c.TagName
	}
	return defaultTagName
}

// TagMessageTemplate returns the annotated tag message template.
func (c *Config) TagMessageTemplate() string {
	if c.TagMessage != nil {
		return *c.TagMessage
	}
	return defaultTagMessage
}

// PreReleaseMessage returns the version-commit message template.
func (c *Config) PreReleaseMessage() string {
	if c.PreReleaseCommitMessage != nil {
		return *c.PreReleaseCommitMessage
	}
	return defaultPreMessage
}

// PostReleaseMessage returns the post-release commit message template.
func (c *Config) PostReleaseMessage() string {
	if c.PostReleaseCommitMessage != nil {
		return *c.PostReleaseCommitMessage
	}
	return defaultPostMessage
}

// DevExt returns the pre-release identifier appended to post-release
// development versions.
func (c *Config) DevExt() string {
	if c.DevVersionExt != nil {
		return *c.DevVersionExt
	}
	return defaultDevVersionExt
}

// DevVersionDisabled reports whether the post-release development bump is
// skipped.
func (c *Config) DevVersionDisabled() bool { return boolOf(c.NoDevVersion) }

// FeatureSelection returns the feature flags for the publish call.
func (c *Config) FeatureSelection() Features {
	if boolOf(c.EnableAllFeatures) {
		return Features{All: true}
	}
	return Features{Selected: c.EnableFeatures}
}

// CommitsConsolidated reports whether the workspace shares one commit per
// phase instead of one per package.
func (c *Config) CommitsConsolidated() bool { return boolOf(c.ConsolidateCommits) }

// PushesConsolidated reports whether the workspace shares one branch push
// instead of one per package.
func (c *Config) PushesConsolidated() bool { return boolOf(c.ConsolidatePushes) }

// TokenValue returns the registry token, or "".
func (c *Config) TokenValue() string {
	if c.Token != nil {
		return *c.Token
	}
	return ""
}
