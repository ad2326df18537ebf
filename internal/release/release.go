// Package release plans and executes releases.
//
// The flow is: [Builder] turns each workspace member into an immutable
// [Plan] (what version to move to, what tag to create, which dependents need
// their requirements reconciled), and [Pipeline] walks the ordered plans
// through seven phases, turning them into side effects through the [Git] and
// [Registry] collaborators. Aborts are exit-code values, not errors; only
// genuinely fatal conditions surface as errors.
package release

import (
	"context"
	"time"

	"crateship/internal/config"
)

// Git is the version-control collaborator. Satisfied by [crateship/internal/gitutil.Git].
type Git interface {
	VersionCheck(ctx context.Context) error
	IsDirty(ctx context.Context, dir string) (bool, error)
	ChangedFiles(ctx context.Context, dir, tag string) ([]string, bool, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
	Fetch(ctx context.Context, dir, remote, branch string) error
	IsBehindRemote(ctx context.Context, dir, remote, branch string) (bool, error)
	CommitAll(ctx context.Context, dir, msg string, sign, dryRun bool) (bool, error)
	Tag(ctx context.Context, dir, name, msg string, sign, dryRun bool) (bool, error)
	Push(ctx context.Context, dir, remote string, options []string, dryRun bool) (bool, error)
	PushTag(ctx context.Context, dir, remote, tag string, dryRun bool) (bool, error)
}

// PublishRequest carries one package's publish invocation.
type PublishRequest struct {
	ManifestPath string
	Features     config.Features
	Registry     string
	Token        string
	DryRun       bool
}

// Registry is the package-registry collaborator. Satisfied by an adapter
// over [crateship/internal/cargo.Cargo].
type Registry interface {
	Publish(ctx context.Context, req PublishRequest) (bool, error)
	SetPackageVersion(manifestPath, version string) error
	SetDependencyVersion(manifestPath, dep, req string) (bool, error)
	UpdateLock(ctx context.Context, manifestPath string, dryRun bool) (bool, error)
	WaitForPublish(ctx context.Context, name, version string, timeout time.Duration) error
}
