package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crateship/internal/cargo"
	"crateship/internal/config"
	"crateship/internal/gitutil"
	"crateship/internal/release"
	"crateship/internal/shell"
	"crateship/internal/version"
	"crateship/internal/workspace"
)

// publishTimeout bounds the registry index poll after each publish.
const publishTimeout = 300 * time.Second

type releaseOptions struct {
	manifestPath string
	packages     []string
	exclude      []string
	metadata     string
	configPath   string
	isolated     bool
	dryRun       bool
	noConfirm    bool
	prevTagName  string

	sign       bool
	signCommit bool
	signTag    bool

	pushRemote  string
	registry    string
	skipPublish bool
	skipTag     bool
	skipPush    bool

	dependentVersion string
	tagPrefix        string
	tagName          string
	devVersionExt    string
	noDevVersion     bool

	features    []string
	allFeatures bool
	token       string
}

func newReleaseCommand(app *App) *cobra.Command {
	opts := &releaseOptions{}
	cmd := &cobra.Command{
		Use:   "release [LEVEL|VERSION]",
		Short: "Release the workspace crates",
		Long: `Release one or many crates of the current cargo workspace.

The positional argument is either a bump level (release, major, minor,
patch, rc, beta, alpha) or an explicit version. Without it, pre-release
versions are finalized and everything else is left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return app.runRelease(cmd.Context(), cmd.Flags(), opts, args)
		},
	}

	opts.bind(cmd.Flags())
	return cmd
}

func (opts *releaseOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&opts.manifestPath, "manifest-path", "", "path to the workspace Cargo.toml")
	flags.StringSliceVarP(&opts.packages, "package", "p", nil, "package(s) to release (default: all members)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "package(s) to skip")
	flags.StringVarP(&opts.metadata, "metadata", "m", "", "build metadata appended to the new version")
	flags.StringVarP(&opts.configPath, "config", "c", "", "custom config file, layered above release.toml")
	flags.BoolVar(&opts.isolated, "isolated", false, "ignore release.toml and manifest metadata config")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "log every action without performing it")
	flags.BoolVar(&opts.noConfirm, "no-confirm", false, "skip the confirmation prompt")
	flags.StringVar(&opts.prevTagName, "prev-tag-name", "", "tag of the previous release, used verbatim")

	flags.BoolVar(&opts.sign, "sign", false, "sign both commits and tags")
	flags.BoolVar(&opts.signCommit, "sign-commit", false, "GPG-sign commits")
	flags.BoolVar(&opts.signTag, "sign-tag", false, "GPG-sign tags")

	flags.StringVar(&opts.pushRemote, "push-remote", "", "git remote to push to")
	flags.StringVar(&opts.registry, "registry", "", "alternate registry to publish to")
	flags.BoolVar(&opts.skipPublish, "skip-publish", false, "do not publish to the registry")
	flags.BoolVar(&opts.skipTag, "skip-tag", false, "do not tag the release")
	flags.BoolVar(&opts.skipPush, "skip-push", false, "do not push commits or tags")

	flags.StringVar(&opts.dependentVersion, "dependent-version", "", "policy for workspace dependents: ignore, warn, error, fix, upgrade")
	flags.StringVar(&opts.tagPrefix, "tag-prefix", "", "tag prefix template")
	flags.StringVar(&opts.tagName, "tag-name", "", "tag name template")
	flags.StringVar(&opts.devVersionExt, "dev-version-ext", "", "pre-release extension of the post-release version")
	flags.BoolVar(&opts.noDevVersion, "no-dev-version", false, "skip the post-release development bump")

	flags.StringSliceVar(&opts.features, "features", nil, "features enabled for the publish")
	flags.BoolVar(&opts.allFeatures, "all-features", false, "enable all features for the publish")
	flags.StringVar(&opts.token, "token", "", "registry token")
}

func (app *App) runRelease(ctx context.Context, flags *pflag.FlagSet, opts *releaseOptions, args []string) error {
	target := version.DefaultTarget()
	if len(args) == 1 {
		parsed, err := version.ParseTarget(args[0])
		if err != nil {
			return err
		}
		target = parsed
	}

	overrides, err := opts.overrides(flags)
	if err != nil {
		return err
	}

	var customCfg *config.Config
	if opts.configPath != "" {
		customCfg, err = config.ResolveCustomConfig(opts.configPath)
		if err != nil {
			return err
		}
	}

	sh := shell.NewRunner(app.Logger)
	git := gitutil.New(sh)
	git.Bin = app.Env.GitBin
	reg := cargo.New(sh)
	reg.Bin = app.Env.CargoBin
	reg.Logger = app.Logger

	if err := git.VersionCheck(ctx); err != nil {
		return err
	}

	manifestPath := opts.manifestPath
	if manifestPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		manifestPath = filepath.Join(cwd, "Cargo.toml")
	}

	meta, err := workspace.Load(ctx, sh, app.Env.CargoBin, manifestPath)
	if err != nil {
		return err
	}

	wsCfg := &config.Config{}
	if !opts.isolated {
		wsCfg, err = config.ResolveWorkspaceConfig(meta.WorkspaceRoot)
		if err != nil {
			return err
		}
	}
	wsCfg.Update(customCfg)
	wsCfg.Update(overrides)

	selected, skipped, err := workspace.Partition(meta.SortMembers(), opts.packages, opts.exclude)
	if err != nil {
		return err
	}
	for _, p := range skipped {
		app.Logger.Debug("not selected", "package", p.Name)
	}

	builder := &release.Builder{
		Meta:            meta,
		Target:          target,
		Metadata:        opts.metadata,
		Isolated:        opts.isolated,
		CustomConfig:    customCfg,
		Overrides:       overrides,
		PrevTagOverride: opts.prevTagName,
	}

	var plans []*release.Plan
	for _, member := range selected {
		plan, err := builder.Build(member)
		if err != nil {
			return err
		}
		if plan == nil {
			app.Logger.Debug("release disabled", "package", member.Name)
			continue
		}
		if !plan.Releasing() {
			app.Logger.Info("nothing to release", "package", member.Name)
		}
		plans = append(plans, plan)
	}

	token := opts.token
	if token == "" {
		token = app.Env.Token
	}

	pipeline := &release.Pipeline{
		Git:            git,
		Registry:       registryAdapter{reg},
		Sh:             sh,
		WorkspaceRoot:  meta.WorkspaceRoot,
		WSConfig:       wsCfg,
		Logger:         app.Logger,
		Confirm:        confirmPrompt(os.Stdout, os.Stdin),
		Date:           time.Now().Format("2006-01-02"),
		DryRun:         opts.dryRun,
		NoConfirm:      opts.noConfirm,
		Token:          token,
		PublishTimeout: publishTimeout,
		GraceSleep:     app.Env.PublishGraceSleep,
	}

	code, err := pipeline.Run(ctx, plans)
	if err != nil {
		app.Logger.Error("release failed", "err", err)
		return NewExitError(release.CodeFatal)
	}
	if code != release.CodeSuccess {
		return NewExitError(code)
	}
	return nil
}

// overrides builds the flag config layer. Only flags the user actually set
// become part of the layer, so unset flags never shadow file configuration.
func (o *releaseOptions) overrides(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}

	// --sign first, so the specific flags can override half of it.
	if flags.Changed("sign") {
		cfg.SignCommit = &o.sign
		cfg.SignTag = &o.sign
	}
	if flags.Changed("sign-commit") {
		cfg.SignCommit = &o.signCommit
	}
	if flags.Changed("sign-tag") {
		cfg.SignTag = &o.signTag
	}
	if flags.Changed("push-remote") {
		cfg.PushRemote = &o.pushRemote
	}
	if flags.Changed("registry") {
		cfg.Registry = &o.registry
	}
	if flags.Changed("skip-publish") {
		cfg.DisablePublish = &o.skipPublish
	}
	if flags.Changed("skip-tag") {
		cfg.DisableTag = &o.skipTag
	}
	if flags.Changed("skip-push") {
		cfg.DisablePush = &o.skipPush
	}
	if flags.Changed("dependent-version") {
		policy, err := config.ParseDependentVersion(o.dependentVersion)
		if err != nil {
			return nil, err
		}
		cfg.DependentVersion = &policy
	}
	if flags.Changed("tag-prefix") {
		cfg.TagPrefix = &o.tagPrefix
	}
	if flags.Changed("tag-name") {
		cfg.TagName = &o.tagName
	}
	if flags.Changed("dev-version-ext") {
		cfg.DevVersionExt = &o.devVersionExt
	}
	if flags.Changed("no-dev-version") {
		cfg.NoDevVersion = &o.noDevVersion
	}
	if flags.Changed("features") {
		cfg.EnableFeatures = o.features
	}
	if flags.Changed("all-features") {
		cfg.EnableAllFeatures = &o.allFeatures
	}
	if flags.Changed("token") {
		cfg.Token = &o.token
	}
	return cfg, nil
}

// registryAdapter satisfies [release.Registry] on top of [cargo.Cargo].
type registryAdapter struct {
	c *cargo.Cargo
}

func (r registryAdapter) Publish(ctx context.Context, req release.PublishRequest) (bool, error) {
	return r.c.Publish(ctx, cargo.PublishOptions{
		ManifestPath: req.ManifestPath,
		Features:     req.Features.Selected,
		AllFeatures:  req.Features.All,
		Registry:     req.Registry,
		Token:        req.Token,
		DryRun:       req.DryRun,
	})
}

func (r registryAdapter) SetPackageVersion(manifestPath, v string) error {
	return cargo.SetPackageVersion(manifestPath, v)
}

func (r registryAdapter) SetDependencyVersion(manifestPath, dep, req string) (bool, error) {
	return cargo.SetDependencyVersion(manifestPath, dep, req)
}

func (r registryAdapter) UpdateLock(ctx context.Context, manifestPath string, dryRun bool) (bool, error) {
	return r.c.UpdateLock(ctx, manifestPath, dryRun)
}

func (r registryAdapter) WaitForPublish(ctx context.Context, name, v string, timeout time.Duration) error {
	return r.c.WaitForPublish(ctx, name, v, timeout)
}

var _ release.Registry = registryAdapter{}
var _ release.Git = (*gitutil.Git)(nil)
