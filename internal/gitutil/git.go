// Package gitutil wraps the git operations the release pipeline sequences:
// cleanliness checks, change detection, commits, tags, and pushes.
//
// Every mutating operation takes a dryRun flag and a directory; dry-run
// handling lives in the shell runner so a dry call still logs the command
// it would have issued. Read-only probes (IsDirty, ChangedFiles, ...) always
// execute, even in dry-run, because the pipeline's preflight decisions need
// real answers.
package gitutil

import (
	"context"
	"fmt"
	"strings"

	"crateship/internal/shell"
)

// Git invokes the git binary for a workspace.
type Git struct {
	sh *shell.Runner

	// Bin is the git executable. Defaults to "git".
	Bin string
}

// New returns a Git collaborator running commands through sh.
func New(sh *shell.Runner) *Git {
	return &Git{sh: sh, Bin: "git"}
}

// VersionCheck verifies the git binary is present and runnable. A failure
// here is fatal for the whole run.
func (g *Git) VersionCheck(ctx context.Context) error {
	_, _, err := g.sh.Capture(ctx, []string{g.Bin, "--version"}, ".")
	if err != nil {
		return fmt.Errorf("git is not usable: %w", err)
	}
	return nil
}

// IsDirty reports whether dir has uncommitted tracked changes or untracked
// files.
func (g *Git) IsDirty(ctx context.Context, dir string) (bool, error) {
	_, code, err := g.sh.Capture(ctx, []string{g.Bin, "diff", "HEAD", "--exit-code", "--name-only"}, dir)
	if err != nil {
		return false, err
	}
	if code != 0 {
		return true, nil
	}

	out, _, err := g.sh.Capture(ctx, []string{g.Bin, "ls-files", "--exclude-standard", "--others"}, dir)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// ChangedFiles lists the paths changed under dir since tag, relative to
// dir. ok is false when the state is unknown, typically because the tag
// does not exist.
func (g *Git) ChangedFiles(ctx context.Context, dir, tag string) ([]string, bool, error) {
	out, code, err := g.sh.Capture(ctx,
		[]string{g.Bin, "diff", tag + "..HEAD", "--name-only", "--exit-code", "--relative", "."}, dir)
	if err != nil {
		return nil, false, err
	}
	switch code {
	case 0:
		return nil, true, nil
	case 1:
		var files []string
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				files = append(files, line)
			}
		}
		return files, true, nil
	default:
		return nil, false, nil
	}
}

// CurrentBranch returns the short name of the checked-out branch, or "HEAD"
// for a detached head.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, code, err := g.sh.Capture(ctx, []string{g.Bin, "rev-parse", "--abbrev-ref", "HEAD"}, dir)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("cannot determine current branch in %s", dir)
	}
	return strings.TrimSpace(out), nil
}

// Fetch updates the remote tracking state for branch.
func (g *Git) Fetch(ctx context.Context, dir, remote, branch string) error {
	_, code, err := g.sh.Capture(ctx, []string{g.Bin, "fetch", remote, branch}, dir)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("git fetch %s %s failed", remote, branch)
	}
	return nil
}

// IsBehindRemote reports whether the local branch is missing commits that
// exist on remote/branch.
func (g *Git) IsBehindRemote(ctx context.Context, dir, remote, branch string) (bool, error) {
	out, code, err := g.sh.Capture(ctx,
		[]string{g.Bin, "rev-list", "--count", fmt.Sprintf("HEAD..%s/%s", remote, branch)}, dir)
	if err != nil {
		return false, err
	}
	if code != 0 {
		// No upstream ref; treat as not behind.
		return false, nil
	}
	return strings.TrimSpace(out) != "0", nil
}

// CommitAll commits every pending change in dir.
func (g *Git) CommitAll(ctx context.Context, dir, msg string, sign, dryRun bool) (bool, error) {
	args := []string{g.Bin, "commit"}
	if sign {
		args = append(args, "-S")
	}
	args = append(args, "-am", msg)
	return g.sh.Call(ctx, args, dir, dryRun)
}

// Tag creates an annotated tag, optionally signed.
func (g *Git) Tag(ctx context.Context, dir, name, msg string, sign, dryRun bool) (bool, error) {
	args := []string{g.Bin, "tag", "-a", name, "-m", msg}
	if sign {
		args = append(args, "-s")
	}
	return g.sh.Call(ctx, args, dir, dryRun)
}

// Push pushes HEAD to remote, forwarding any configured push options.
func (g *Git) Push(ctx context.Context, dir, remote string, options []string, dryRun bool) (bool, error) {
	args := []string{g.Bin, "push"}
	for _, opt := range options {
		args = append(args, "--push-option="+opt)
	}
	args = append(args, remote)
	return g.sh.Call(ctx, args, dir, dryRun)
}

// PushTag pushes a single tag to remote.
func (g *Git) PushTag(ctx context.Context, dir, remote, tag string, dryRun bool) (bool, error) {
	return g.sh.Call(ctx, []string{g.Bin, "push", remote, tag}, dir, dryRun)
}

// TopLevel returns the repository root containing dir.
func (g *Git) TopLevel(ctx context.Context, dir string) (string, error) {
	out, code, err := g.sh.Capture(ctx, []string{g.Bin, "rev-parse", "--show-toplevel"}, dir)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s is not inside a git repository", dir)
	}
	return strings.TrimSpace(out), nil
}
