package release

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crateship/internal/workspace"
)

// mockGit records every call and can be told to fail specific operations.
type mockGit struct {
	dirty       bool
	changed     []string
	changedOK   bool
	branch      string
	behind      bool
	versionErr  error
	commitFail  bool
	tagFail     bool
	pushFail    bool
	pushTagFail bool

	calls []string
}

func (m *mockGit) record(format string, args ...interface{}) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *mockGit) VersionCheck(ctx context.Context) error { return m.versionErr }

func (m *mockGit) IsDirty(ctx context.Context, dir string) (bool, error) {
	m.record("isDirty %s", dir)
	return m.dirty, nil
}

func (m *mockGit) ChangedFiles(ctx context.Context, dir, tag string) ([]string, bool, error) {
	m.record("changedFiles %s %s", dir, tag)
	return m.changed, m.changedOK, nil
}

func (m *mockGit) CurrentBranch(ctx context.Context, dir string) (string, error) {
	if m.branch == "" {
		return "main", nil
	}
	return m.branch, nil
}

func (m *mockGit) Fetch(ctx context.Context, dir, remote, branch string) error { return nil }

func (m *mockGit) IsBehindRemote(ctx context.Context, dir, remote, branch string) (bool, error) {
	return m.behind, nil
}

func (m *mockGit) CommitAll(ctx context.Context, dir, msg string, sign, dryRun bool) (bool, error) {
	m.record("commit %s %q sign=%v dry=%v", dir, msg, sign, dryRun)
	return !m.commitFail, nil
}

func (m *mockGit) Tag(ctx context.Context, dir, name, msg string, sign, dryRun bool) (bool, error) {
	m.record("tag %s %s sign=%v dry=%v", dir, name, sign, dryRun)
	return !m.tagFail, nil
}

func (m *mockGit) Push(ctx context.Context, dir, remote string, options []string, dryRun bool) (bool, error) {
	m.record("push %s %s dry=%v", dir, remote, dryRun)
	return !m.pushFail, nil
}

func (m *mockGit) PushTag(ctx context.Context, dir, remote, tag string, dryRun bool) (bool, error) {
	m.record("pushTag %s %s %s dry=%v", dir, remote, tag, dryRun)
	return !m.pushTagFail, nil
}

// mockRegistry records publishes and manifest edits.
type mockRegistry struct {
	publishFail bool
	waitErr     error

	published []PublishRequest
	versions  map[string]string // manifest path -> version written
	reqs      map[string]string // "manifest dep" -> requirement written
	waited    []string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		versions: map[string]string{},
		reqs:     map[string]string{},
	}
}

func (m *mockRegistry) Publish(ctx context.Context, req PublishRequest) (bool, error) {
	m.published = append(m.published, req)
	return !m.publishFail, nil
}

func (m *mockRegistry) SetPackageVersion(manifestPath, version string) error {
	m.versions[manifestPath] = version
	return nil
}

func (m *mockRegistry) SetDependencyVersion(manifestPath, dep, req string) (bool, error) {
	m.reqs[manifestPath+" "+dep] = req
	return true, nil
}

func (m *mockRegistry) UpdateLock(ctx context.Context, manifestPath string, dryRun bool) (bool, error) {
	return true, nil
}

func (m *mockRegistry) WaitForPublish(ctx context.Context, name, version string, timeout time.Duration) error {
	m.waited = append(m.waited, name+" "+version)
	return m.waitErr
}

// metaFixture builds workspace metadata from name -> dependency names, with
// every member under root/<name>.
func metaFixture(t *testing.T, root string, edges map[string][]string) *workspace.Metadata {
	t.Helper()

	type jsonDep struct {
		Name string `json:"name"`
		Req  string `json:"req"`
	}
	type jsonPkg struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Version      string    `json:"version"`
		ManifestPath string    `json:"manifest_path"`
		Dependencies []jsonDep `json:"dependencies"`
	}

	var pkgs []jsonPkg
	var members []string
	for name, deps := range edges {
		var jdeps []jsonDep
		for _, d := range deps {
			jdeps = append(jdeps, jsonDep{Name: d, Req: "^0.1.0"})
		}
		pkgs = append(pkgs, jsonPkg{
			ID:           name,
			Name:         name,
			Version:      "0.1.0",
			ManifestPath: root + "/" + name + "/Cargo.toml",
			Dependencies: jdeps,
		})
		members = append(members, name)
	}

	raw, err := json.Marshal(map[string]interface{}{
		"packages":          pkgs,
		"workspace_members": members,
		"workspace_root":    root,
	})
	require.NoError(t, err)
	meta, err := workspace.Parse(raw)
	require.NoError(t, err)
	return meta
}
