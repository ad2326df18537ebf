// Package workspace loads cargo workspace metadata and answers structural
// questions about it: which packages are members, in what order they must be
// released, and who depends on whom.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"crateship/internal/shell"
)

// Dependency is a single requirement edge as reported by cargo metadata.
type Dependency struct {
	Name string `json:"name"`
	Req  string `json:"req"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Package is one package in the metadata graph. Members and external
// dependencies share this shape; membership is determined by ID.
type Package struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	ManifestPath string       `json:"manifest_path"`
	Publish      []string     `json:"publish"`
	Dependencies []Dependency `json:"dependencies"`
}

// Dir returns the directory containing the package manifest.
func (p *Package) Dir() string {
	return filepath.Dir(p.ManifestPath)
}

// Metadata is the decoded output of `cargo metadata --format-version 1`,
// reduced to the fields this tool consumes.
type Metadata struct {
	Packages         []*Package `json:"packages"`
	WorkspaceMembers []string   `json:"workspace_members"`
	WorkspaceRoot    string     `json:"workspace_root"`

	byID   map[string]*Package
	member map[string]bool
}

// Load runs cargo metadata for the given manifest and decodes the result.
// The probe always executes for real: it is read-only and the rest of the
// pipeline cannot plan without it.
func Load(ctx context.Context, sh *shell.Runner, cargoBin, manifestPath string) (*Metadata, error) {
	args := []string{cargoBin, "metadata", "--format-version", "1", "--manifest-path", manifestPath}
	out, code, err := sh.Capture(ctx, args, filepath.Dir(manifestPath))
	if err != nil {
		return nil, fmt.Errorf("failed to run cargo metadata: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("cargo metadata exited with code %d", code)
	}
	return Parse([]byte(out))
}

// Parse decodes raw cargo metadata JSON and indexes it.
func Parse(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("invalid cargo metadata: %w", err)
	}
	meta.index()
	return &meta, nil
}

func (m *Metadata) index() {
	m.byID = make(map[string]*Package, len(m.Packages))
	for _, p := range m.Packages {
		m.byID[p.ID] = p
	}
	m.member = make(map[string]bool, len(m.WorkspaceMembers))
	for _, id := range m.WorkspaceMembers {
		m.member[id] = true
	}
}

// Members returns the workspace member packages in metadata order.
func (m *Metadata) Members() []*Package {
	out := make([]*Package, 0, len(m.WorkspaceMembers))
	for _, p := range m.Packages {
		if m.member[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// MemberByName looks up a workspace member by package name.
func (m *Metadata) MemberByName(name string) *Package {
	for _, p := range m.Members() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// memberByDepName resolves a dependency edge to a workspace member. Cargo
// names dependencies by package name, and a path edge inside the workspace
// means the target is a member.
func (m *Metadata) memberByDepName(name string) *Package {
	for _, p := range m.Packages {
		if p.Name == name && m.member[p.ID] {
			return p
		}
	}
	return nil
}

// SortMembers orders workspace members so every member appears after the
// members it depends on. Within that constraint the order of first visit is
// the metadata member order, which keeps the result stable across runs.
func (m *Metadata) SortMembers() []*Package {
	processed := make(map[string]bool, len(m.WorkspaceMembers))
	var ordered []*Package

	var visit func(p *Package)
	visit = func(p *Package) {
		if processed[p.ID] {
			return
		}
		processed[p.ID] = true
		for _, dep := range p.Dependencies {
			if target := m.memberByDepName(dep.Name); target != nil {
				visit(target)
			}
		}
		ordered = append(ordered, p)
	}

	for _, p := range m.Members() {
		visit(p)
	}
	return ordered
}

// Partition splits members into selected and skipped according to the
// -p/--exclude filters. An empty include set selects everything. Selection is
// by package name; unknown names are reported as an error so typos do not
// silently release the whole workspace.
func Partition(members []*Package, include, exclude []string) (selected, skipped []*Package, err error) {
	known := make(map[string]bool, len(members))
	for _, p := range members {
		known[p.Name] = true
	}
	for _, name := range append(append([]string{}, include...), exclude...) {
		if !known[name] {
			return nil, nil, fmt.Errorf("package %q is not a workspace member", name)
		}
	}

	includeSet := make(map[string]bool, len(include))
	for _, name := range include {
		includeSet[name] = true
	}
	excludeSet := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excludeSet[name] = true
	}

	for _, p := range members {
		in := len(include) == 0 || includeSet[p.Name]
		if in && !excludeSet[p.Name] {
			selected = append(selected, p)
		} else {
			skipped = append(skipped, p)
		}
	}
	return selected, skipped, nil
}

// Dependents returns the workspace members that declare a dependency on pkg,
// along with the requirement string of each edge.
func (m *Metadata) Dependents(pkg *Package) []DependentEdge {
	var out []DependentEdge
	for _, p := range m.Members() {
		if p.ID == pkg.ID {
			continue
		}
		for _, dep := range p.Dependencies {
			if dep.Name == pkg.Name && m.memberByDepName(dep.Name) != nil {
				out = append(out, DependentEdge{Member: p, Req: dep.Req, Kind: dep.Kind})
			}
		}
	}
	return out
}

// DependentEdge is one member -> member dependency edge.
type DependentEdge struct {
	Member *Package
	Req    string
	Kind   string
}

// ExcludePaths lists the directories of all other workspace members that live
// under pkg's directory. Publishing pkg must not sweep nested member sources
// into the package, so these become --exclude style path filters for the
// changed-files probe.
func (m *Metadata) ExcludePaths(pkg *Package) []string {
	base := pkg.Dir()
	var out []string
	for _, p := range m.Members() {
		if p.ID == pkg.ID {
			continue
		}
		rel, err := filepath.Rel(base, p.Dir())
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}
