package release

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"crateship/internal/config"
	"crateship/internal/version"
)

// reconcileDependents applies the plan's dependent-version policy to every
// dependent's requirement against ver. Under the error policy all mismatches
// are collected first and reported as one aggregate failure, so a single run
// surfaces every conflicting dependent.
func reconcileDependents(plan *Plan, ver *semver.Version, reg Registry, logger *log.Logger, dryRun bool) error {
	policy := plan.Config.Policy()
	if policy == config.DependentIgnore {
		return nil
	}

	var conflicts []string
	for _, edge := range plan.Dependents {
		matched, err := version.Matches(edge.Req, ver)
		if err != nil {
			return fmt.Errorf("dependent %s has unparsable requirement %q on %s: %w",
				edge.Member.Name, edge.Req, plan.Member.Name, err)
		}

		switch policy {
		case config.DependentWarn:
			if !matched {
				logger.Warn("dependent requirement no longer matches",
					"dependent", edge.Member.Name, "package", plan.Member.Name,
					"requirement", edge.Req, "version", ver.String())
			}
		case config.DependentError:
			if !matched {
				logger.Warn("dependent requirement no longer matches",
					"dependent", edge.Member.Name, "package", plan.Member.Name,
					"requirement", edge.Req, "version", ver.String())
				conflicts = append(conflicts,
					fmt.Sprintf("%s requires %s %s", edge.Member.Name, plan.Member.Name, edge.Req))
			}
		case config.DependentFix:
			if !matched {
				if err := rewriteRequirement(plan, edge.Member.ManifestPath, edge.Req, ver, reg, logger, dryRun); err != nil {
					return err
				}
			}
		case config.DependentUpgrade:
			if err := rewriteRequirement(plan, edge.Member.ManifestPath, edge.Req, ver, reg, logger, dryRun); err != nil {
				return err
			}
		}
	}

	if len(conflicts) > 0 {
		return fmt.Errorf("%d dependents are incompatible with %s %s: %s",
			len(conflicts), plan.Member.Name, ver, strings.Join(conflicts, "; "))
	}
	return nil
}

func rewriteRequirement(plan *Plan, manifestPath, req string, ver *semver.Version, reg Registry, logger *log.Logger, dryRun bool) error {
	newReq, changed, err := version.SetRequirement(req, ver)
	if err != nil {
		return fmt.Errorf("cannot rewrite requirement %q for %s: %w", req, plan.Member.Name, err)
	}
	if !changed {
		return nil
	}
	if dryRun {
		logger.Info("would update dependency requirement",
			"manifest", manifestPath, "package", plan.Member.Name,
			"from", req, "to", newReq)
		return nil
	}
	logger.Debug("updating dependency requirement",
		"manifest", manifestPath, "package", plan.Member.Name,
		"from", req, "to", newReq)
	if _, err := reg.SetDependencyVersion(manifestPath, plan.Member.Name, newReq); err != nil {
		return err
	}
	return nil
}
