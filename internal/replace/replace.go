// Package replace applies the configured pre- and post-release file edits:
// regex substitutions in changelogs, READMEs, and the like, with match-count
// guards so a drifted pattern fails loudly instead of silently doing nothing.
package replace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/log"

	"crateship/internal/config"
	"crateship/internal/template"
)

// Apply runs every replacement against files under dir. Entries not marked
// prerelease are skipped when the version being released is a pre-release.
// In a dry run the edits are computed and validated but not written.
func Apply(replacements []config.Replacement, tctx *template.Context, dir string, prerelease, dryRun bool, logger *log.Logger) error {
	for _, r := range replacements {
		if prerelease && !r.Prerelease {
			logger.Debug("skipping replacement for pre-release", "file", r.File)
			continue
		}
		if err := applyOne(r, tctx, dir, dryRun, logger); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(r config.Replacement, tctx *template.Context, dir string, dryRun bool, logger *log.Logger) error {
	path := filepath.Join(dir, tctx.Render(r.File))

	search, err := regexp.Compile(tctx.Render(r.Search))
	if err != nil {
		return fmt.Errorf("invalid search pattern for %s: %w", path, err)
	}
	replacement := tctx.Render(r.Replace)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	matches := len(search.FindAllIndex(data, -1))
	if err := checkCount(r, matches); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if dryRun {
		logger.Info("would replace", "file", path, "matches", matches)
		return nil
	}

	out := search.ReplaceAll(data, []byte(replacement))
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Debug("replaced", "file", path, "matches", matches)
	return nil
}

// checkCount enforces the min/max/exactly guards. Min defaults to one match:
// a replacement that finds nothing is almost always a stale pattern.
func checkCount(r config.Replacement, matches int) error {
	if r.Exactly != nil {
		if matches != *r.Exactly {
			return fmt.Errorf("expected exactly %d matches for %q, found %d", *r.Exactly, r.Search, matches)
		}
		return nil
	}
	min := 1
	if r.Min != nil {
		min = *r.Min
	}
	if matches < min {
		return fmt.Errorf("expected at least %d matches for %q, found %d", min, r.Search, matches)
	}
	if r.Max != nil && matches > *r.Max {
		return fmt.Errorf("expected at most %d matches for %q, found %d", *r.Max, r.Search, matches)
	}
	return nil
}
