// Package cargo wraps the cargo executable and the registry index. It is the
// only package that knows how to publish, how to rewrite manifest versions,
// and how to tell when the index has caught up.
package cargo

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"crateship/internal/shell"
)

// defaultIndexURL is the sparse index of the default registry.
const defaultIndexURL = "https://index.crates.io"

// Cargo runs cargo subcommands through the shared shell runner.
type Cargo struct {
	sh *shell.Runner

	// Bin is the cargo executable, normally "cargo".
	Bin string

	// IndexURL is the sparse index base used by [Cargo.WaitForPublish].
	IndexURL string

	// HTTPClient performs index probes. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// PollInterval spaces the index probes. Defaults to one second.
	PollInterval time.Duration

	// Logger records failed index probes. Defaults to log.Default.
	Logger *log.Logger
}

// New returns a Cargo bound to the given runner.
func New(sh *shell.Runner) *Cargo {
	return &Cargo{
		sh:       sh,
		Bin:      "cargo",
		IndexURL: defaultIndexURL,
	}
}

func (c *Cargo) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// PublishOptions carries the per-package knobs for a publish invocation.
type PublishOptions struct {
	ManifestPath string
	Features     []string
	AllFeatures  bool
	Registry     string
	Token        string
	DryRun       bool
}

// Publish runs `cargo publish` for one package. The returned bool reports
// whether cargo itself succeeded; a dry run always succeeds without running.
func (c *Cargo) Publish(ctx context.Context, opts PublishOptions) (bool, error) {
	args := []string{c.Bin, "publish", "--manifest-path", opts.ManifestPath}
	if opts.AllFeatures {
		args = append(args, "--all-features")
	} else if len(opts.Features) > 0 {
		args = append(args, "--features", strings.Join(opts.Features, " "))
	}
	if opts.Registry != "" {
		args = append(args, "--registry", opts.Registry)
	}
	if opts.Token != "" {
		args = append(args, "--token", opts.Token)
	}
	return c.sh.Call(ctx, args, filepath.Dir(opts.ManifestPath), opts.DryRun)
}

// UpdateLock refreshes Cargo.lock after manifest versions changed. Running
// the metadata probe is enough: cargo rewrites the lock file as a side
// effect, without touching the network the way `cargo update` would.
func (c *Cargo) UpdateLock(ctx context.Context, manifestPath string, dryRun bool) (bool, error) {
	args := []string{c.Bin, "metadata", "--format-version", "1", "--manifest-path", manifestPath}
	if dryRun {
		return c.sh.Call(ctx, args, filepath.Dir(manifestPath), true)
	}
	_, code, err := c.sh.Capture(ctx, args, filepath.Dir(manifestPath))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}
