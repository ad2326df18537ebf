// Package shell runs external commands (git, cargo, user hooks) with
// uniform logging and dry-run handling.
//
// Dry-run is implemented here, at the lowest level: a dry [Runner.Call]
// logs the exact command it would have run and reports success. Callers
// keep identical control flow between real and dry runs, which is what
// makes dry-run output a faithful preview of the real action sequence.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Runner executes external commands.
type Runner struct {
	logger *log.Logger

	// Stdout and Stderr receive the child process output for pass-through
	// calls. They default to the process's own streams.
	Stdout *os.File
	Stderr *os.File
}

// NewRunner returns a Runner that logs through logger.
func NewRunner(logger *log.Logger) *Runner {
	return &Runner{logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Call runs args[0] with the remaining arguments in dir, streaming output to
// the terminal. It returns true when the command exits zero, false for a
// non-zero exit, and a non-nil error only when the command could not be run
// at all. In dry-run mode nothing is executed and the result is success.
func (r *Runner) Call(ctx context.Context, args []string, dir string, dryRun bool) (bool, error) {
	return r.CallWithEnv(ctx, args, nil, dir, dryRun)
}

// CallWithEnv is Call with extra environment variables appended to the
// inherited environment.
func (r *Runner) CallWithEnv(ctx context.Context, args []string, env map[string]string, dir string, dryRun bool) (bool, error) {
	if len(args) == 0 {
		return false, fmt.Errorf("empty command")
	}
	if dryRun {
		r.logger.Info("would run", "cmd", strings.Join(args, " "), "dir", dir)
		return true, nil
	}
	r.logger.Debug("running", "cmd", strings.Join(args, " "), "dir", dir)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), flattenEnv(env)...)
	}

	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return false, nil
	}
	return false, fmt.Errorf("failed to run %s: %w", args[0], err)
}

// Capture runs the command in dir and returns its standard output and exit
// code. Unlike Call, Capture always executes: it exists for read-only
// queries (git status probes, cargo metadata) that dry-run still needs.
func (r *Runner) Capture(ctx context.Context, args []string, dir string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, fmt.Errorf("empty command")
	}
	r.logger.Debug("querying", "cmd", strings.Join(args, " "), "dir", dir)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), exitErr.ExitCode(), nil
		}
		return "", 0, fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return string(out), 0, nil
}

func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]string, 0, len(env))
	for _, k := range keys {
		kv = append(kv, k+"="+env[k])
	}
	return kv
}
