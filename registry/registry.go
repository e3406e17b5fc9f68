// Package registry holds the set of known upgrade steps and validates, at
// load time, that they form one unbroken linear chain per dialect. The
// registry replaces implicit file-name ordering with typed step identities:
// every violation is fatal up front, never silently skipped at run time.
package registry

import (
	"fmt"
	"sort"

	migrator "github.com/getpup/schema-migrator"
)

// Registry is the validated, ordered set of upgrade steps for all dialects.
// It is read-mostly: built once, then shared by any number of runners.
type Registry struct {
	chains map[migrator.Dialect][]migrator.Step
	lowest int
	latest int
}

// New builds a Registry from the given steps and validates every chain.
// Returns a *migrator.RegistryError if any dialect's steps branch, leave a
// gap, or disagree with another dialect on the lowest or highest version.
func New(steps []migrator.Step) (*Registry, error) {
	if len(steps) == 0 {
		return nil, &migrator.RegistryError{Reason: "no upgrade steps defined"}
	}

	chains := make(map[migrator.Dialect][]migrator.Step)
	for _, step := range steps {
		if step.ToVersion != step.FromVersion+1 {
			return nil, &migrator.RegistryError{
				Dialect: step.Dialect,
				Reason:  fmt.Sprintf("step %d->%d must advance by exactly one version", step.FromVersion, step.ToVersion),
			}
		}
		chains[step.Dialect] = append(chains[step.Dialect], step)
	}

	r := &Registry{chains: chains}

	first := true
	for dialect, chain := range chains {
		sort.Slice(chain, func(i, j int) bool {
			return chain[i].FromVersion < chain[j].FromVersion
		})

		for i := 1; i < len(chain); i++ {
			prev, cur := chain[i-1], chain[i]
			if cur.FromVersion == prev.FromVersion {
				return nil, &migrator.RegistryError{
					Dialect: dialect,
					Reason:  fmt.Sprintf("two steps share fromVersion %d (branching chain)", cur.FromVersion),
				}
			}
			if cur.FromVersion != prev.ToVersion {
				return nil, &migrator.RegistryError{
					Dialect: dialect,
					Reason:  fmt.Sprintf("gap between versions %d and %d", prev.ToVersion, cur.FromVersion),
				}
			}
		}

		lowest := chain[0].FromVersion
		latest := chain[len(chain)-1].ToVersion
		if first {
			r.lowest, r.latest = lowest, latest
			first = false
			continue
		}
		if lowest != r.lowest || latest != r.latest {
			return nil, &migrator.RegistryError{
				Reason: fmt.Sprintf(
					"dialect %s covers versions %d-%d while another dialect covers %d-%d (cross-dialect parity)",
					dialect, lowest, latest, r.lowest, r.latest,
				),
			}
		}
	}

	return r, nil
}

// Dialects returns the dialects the registry has steps for, in no particular order.
func (r *Registry) Dialects() []migrator.Dialect {
	dialects := make([]migrator.Dialect, 0, len(r.chains))
	for d := range r.chains {
		dialects = append(dialects, d)
	}
	return dialects
}

// LowestVersion returns the lowest fromVersion any chain starts at.
// Fresh databases are bootstrapped to this version.
func (r *Registry) LowestVersion() int {
	return r.lowest
}

// LatestVersion returns the common target version all dialects upgrade to.
func (r *Registry) LatestVersion() int {
	return r.latest
}

// StepsFrom returns the ordered steps that take the given dialect from
// currentVersion to the latest version. Returns an empty list if the schema
// is already current, and an error if the dialect is unknown or the version
// lies outside the chain.
func (r *Registry) StepsFrom(dialect migrator.Dialect, currentVersion int) ([]migrator.Step, error) {
	chain, ok := r.chains[dialect]
	if !ok {
		return nil, fmt.Errorf("no upgrade steps for dialect %s: %w", dialect, migrator.ErrUnsupportedDialect)
	}

	if currentVersion == r.latest {
		return nil, nil
	}
	if currentVersion > r.latest {
		return nil, fmt.Errorf("schema version %d is newer than the latest known version %d", currentVersion, r.latest)
	}
	if currentVersion < r.lowest {
		return nil, fmt.Errorf("schema version %d predates the lowest known version %d", currentVersion, r.lowest)
	}

	return chain[currentVersion-r.lowest:], nil
}
