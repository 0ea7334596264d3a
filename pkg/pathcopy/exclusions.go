package pathcopy

import (
	"path/filepath"
	"strings"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// exclusionSet holds the categorized exclusion patterns for efficient matching.
type exclusionSet struct {
	// literals are for exact full-path matches, which are the fastest to check.
	literals map[string]struct{}
	// basenameLiterals are for exact basename matches (e.g., "node_modules").
	// These match anywhere in the tree, aligning with .gitignore behavior.
	basenameLiterals map[string]struct{}
	// globs hold the remaining wildcard patterns.
	globs []glob
}

type glob struct {
	pattern       string
	matchBasename bool
}

// makeExclusionSet analyzes and categorizes patterns to enable optimized matching later.
func makeExclusionSet(patterns []string) exclusionSet {
	set := exclusionSet{
		literals:         make(map[string]struct{}),
		basenameLiterals: make(map[string]struct{}),
	}

	for _, p := range patterns {
		p = normalizeExclusionPattern(p)
		if p == "" {
			continue
		}
		// A pattern without a separator matches against the basename anywhere
		// in the tree; a pattern with one matches the full relative path.
		matchBasename := !strings.Contains(p, "/")

		if strings.ContainsAny(p, "*?[") {
			set.globs = append(set.globs, glob{pattern: p, matchBasename: matchBasename})
			continue
		}
		if matchBasename {
			set.basenameLiterals[p] = struct{}{}
		} else {
			set.literals[p] = struct{}{}
		}
	}
	return set
}

// matches reports whether the given relative path key is excluded. Both
// arguments must already be normalized with normalizeExclusionPattern.
func (es *exclusionSet) matches(relPathKey, relPathBasename string) bool {
	if _, ok := es.literals[relPathKey]; ok {
		return true
	}
	if _, ok := es.basenameLiterals[relPathBasename]; ok {
		return true
	}
	for _, g := range es.globs {
		subject := relPathKey
		if g.matchBasename {
			subject = relPathBasename
		}
		ok, err := filepath.Match(g.pattern, subject)
		if err != nil {
			// Patterns are validated at config load; this is unreachable in
			// practice but must not abort a backup.
			plog.Warn("Skipping invalid exclusion pattern", "pattern", g.pattern, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// normalizeExclusionPattern converts a pattern or path to a consistent,
// case-insensitive slash-separated key.
func normalizeExclusionPattern(p string) string {
	return strings.ToLower(util.NormalizePath(strings.TrimSpace(p)))
}
