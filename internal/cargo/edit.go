package cargo

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var sectionRe = regexp.MustCompile(`^\s*\[(.+?)\]\s*$`)

// isDepSection reports whether a manifest section declares dependencies.
// Covers the plain tables, [workspace.dependencies], and target-specific
// tables like [target.'cfg(unix)'.dependencies].
func isDepSection(name string) bool {
	switch name {
	case "dependencies", "dev-dependencies", "build-dependencies":
		return true
	}
	return strings.HasSuffix(name, ".dependencies") ||
		strings.HasSuffix(name, ".dev-dependencies") ||
		strings.HasSuffix(name, ".build-dependencies")
}

// SetPackageVersion rewrites the version key of the [package] table in
// place, preserving every other byte of the manifest.
func SetPackageVersion(manifestPath, version string) error {
	versionLine := regexp.MustCompile(`^(\s*version\s*=\s*")([^"]*)(".*)$`)

	changed := false
	err := rewriteLines(manifestPath, func(section, line string) string {
		if section != "package" || changed {
			return line
		}
		if m := versionLine.FindStringSubmatch(line); m != nil {
			changed = true
			return m[1] + version + m[3]
		}
		return line
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("no version key in [package] of %s", manifestPath)
	}
	return nil
}

// SetDependencyVersion rewrites the requirement on dep wherever the manifest
// declares it: string form, inline-table form, or a dotted sub-table such as
// [dependencies.dep]. Returns whether anything changed.
func SetDependencyVersion(manifestPath, dep, req string) (bool, error) {
	name := regexp.QuoteMeta(dep)
	stringForm := regexp.MustCompile(`^(\s*"?` + name + `"?\s*=\s*")([^"]*)(".*)$`)
	inlineForm := regexp.MustCompile(`^(\s*"?` + name + `"?\s*=\s*\{.*?version\s*=\s*")([^"]*)(".*)$`)
	versionLine := regexp.MustCompile(`^(\s*version\s*=\s*")([^"]*)(".*)$`)

	changed := false
	err := rewriteLines(manifestPath, func(section, line string) string {
		if isDepSection(section) {
			if m := inlineForm.FindStringSubmatch(line); m != nil {
				changed = true
				return m[1] + req + m[3]
			}
			if m := stringForm.FindStringSubmatch(line); m != nil {
				changed = true
				return m[1] + req + m[3]
			}
			return line
		}
		// Dotted sub-table: [dependencies.dep] and friends.
		if strings.HasSuffix(section, "."+dep) && isDepSection(strings.TrimSuffix(section, "."+dep)) {
			if m := versionLine.FindStringSubmatch(line); m != nil {
				changed = true
				return m[1] + req + m[3]
			}
		}
		return line
	})
	return changed, err
}

// rewriteLines streams the manifest through fn line by line, tracking the
// current section, and replaces the file atomically when done.
func rewriteLines(path string, fn func(section, line string) string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	section := ""
	for i, line := range lines {
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = m[1]
			continue
		}
		lines[i] = fn(section, line)
	}

	work := path + ".work"
	if err := os.WriteFile(work, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", work, err)
	}
	if err := os.Rename(work, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
