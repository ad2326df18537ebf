package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// releaseFileName is the standalone config file looked up in the workspace
// root and next to each package manifest.
const releaseFileName = "release.toml"

// publishFlag models the manifest's publish key, which cargo allows to be a
// bool or a list of permitted registries.
type publishFlag struct {
	set      bool
	disabled bool
}

func (p *publishFlag) UnmarshalTOML(v interface{}) error {
	switch t := v.(type) {
	case bool:
		p.set = true
		p.disabled = !t
	case []interface{}:
		p.set = true
		p.disabled = len(t) == 0
	default:
		return fmt.Errorf("publish must be a bool or an array, got %T", v)
	}
	return nil
}

// manifestFile is the subset of Cargo.toml this tool reads.
type manifestFile struct {
	Package *struct {
		Publish  publishFlag `toml:"publish"`
		Metadata *struct {
			Release *Config `toml:"release"`
		} `toml:"metadata"`
	} `toml:"package"`
	Workspace *struct {
		Metadata *struct {
			Release *Config `toml:"release"`
		} `toml:"metadata"`
	} `toml:"workspace"`
}

// loadFile decodes a release.toml. A missing file yields (nil, nil).
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadManifest(path string) (*manifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var m manifestFile
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// ResolveWorkspaceConfig merges the workspace-level sources: the root
// release.toml and [workspace.metadata.release] in the root manifest.
func ResolveWorkspaceConfig(wsRoot string) (*Config, error) {
	cfg := &Config{}

	fileCfg, err := loadFile(filepath.Join(wsRoot, releaseFileName))
	if err != nil {
		return nil, err
	}
	cfg.Update(fileCfg)

	rootManifest := filepath.Join(wsRoot, "Cargo.toml")
	if _, err := os.Stat(rootManifest); err == nil {
		m, err := loadManifest(rootManifest)
		if err != nil {
			return nil, err
		}
		if m.Workspace != nil && m.Workspace.Metadata != nil {
			cfg.Update(m.Workspace.Metadata.Release)
		}
	}
	return cfg, nil
}

// ResolvePackageConfig merges workspace sources with the package's own
// release.toml and [package.metadata.release]. Higher layers win.
func ResolvePackageConfig(wsRoot, manifestPath string) (*Config, error) {
	cfg, err := ResolveWorkspaceConfig(wsRoot)
	if err != nil {
		return nil, err
	}

	pkgDir := filepath.Dir(manifestPath)
	if !samePath(pkgDir, wsRoot) {
		fileCfg, err := loadFile(filepath.Join(pkgDir, releaseFileName))
		if err != nil {
			return nil, err
		}
		cfg.Update(fileCfg)
	}

	m, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if m.Package != nil && m.Package.Metadata != nil {
		cfg.Update(m.Package.Metadata.Release)
	}
	return cfg, nil
}

// ResolveCustomConfig loads an explicitly requested config file. Unlike the
// implicit sources, a missing file is an error here: the user asked for it.
func ResolveCustomConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	return cfg, nil
}

// PublishForcedOff reports whether the package manifest sets publish = false
// (or an empty registry list), which overrides every other layer.
func PublishForcedOff(manifestPath string) (bool, error) {
	m, err := loadManifest(manifestPath)
	if err != nil {
		return false, err
	}
	if m.Package == nil {
		return false, nil
	}
	return m.Package.Publish.set && m.Package.Publish.disabled, nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}
