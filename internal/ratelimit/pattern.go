package ratelimit

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry pairs a path pattern with its requests-per-window limit. Limits is a
// slice of Entry rather than a map because spec.md §9 requires pattern
// resolution to be "first-match wins, in configuration order" — a Go map
// cannot carry insertion order, so the ordered slice is the wire format
// itself, not just an internal detail.
type Entry struct {
	Pattern string
	Limit   int
}

// Limits is an ordered list of path-pattern limits, decoded from a YAML
// mapping while preserving the order its keys were written in.
type Limits []Entry

// UnmarshalYAML preserves the mapping's key order (value.Content alternates
// key, value nodes in document order for a yaml.MappingNode), which a plain
// map[string]int target would discard.
func (l *Limits) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 {
		*l = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("rate limit limits must be a mapping, got kind %d", value.Kind)
	}
	entries := make(Limits, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var limit int
		if err := value.Content[i+1].Decode(&limit); err != nil {
			return fmt.Errorf("decode limit for pattern %q: %w", value.Content[i].Value, err)
		}
		entries = append(entries, Entry{Pattern: value.Content[i].Value, Limit: limit})
	}
	*l = entries
	return nil
}

// patternLookup resolves a request path to a configured limit using the same
// precedence as the source's `_get_limit`: an exact match first (a plain map
// lookup, order-independent since at most one key can equal path), then a
// single insertion-ordered pass over every configured pattern, each tested
// as a regex (if it looks like one — contains `^`, `\`, `{`, or `*`) or else
// as a prefix. The first pattern in configuration order that matches wins,
// so a prefix pattern configured before a regex pattern can beat it even
// when both would match the same path.
type patternLookup struct {
	exact   map[string]int
	ordered []patternLimit
}

type patternLimit struct {
	pattern string
	re      *regexp.Regexp // nil means this entry is prefix-matched
	limit   int
}

func looksLikeRegex(pattern string) bool {
	return strings.ContainsAny(pattern, "^\\{*")
}

func newPatternLookup(limits Limits) *patternLookup {
	pl := &patternLookup{exact: make(map[string]int, len(limits))}
	for _, e := range limits {
		pl.exact[e.Pattern] = e.Limit

		entry := patternLimit{pattern: e.Pattern, limit: e.Limit}
		if looksLikeRegex(e.Pattern) {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				// An unparseable "regex-looking" pattern can never match;
				// skip it rather than let Wrap panic on every request.
				continue
			}
			entry.re = re
		}
		pl.ordered = append(pl.ordered, entry)
	}
	return pl
}

func (pl *patternLookup) lookup(path string) (int, bool) {
	if limit, ok := pl.exact[path]; ok {
		return limit, true
	}
	for _, p := range pl.ordered {
		if p.re != nil {
			// Go's regexp.MatchString anchors neither end by default;
			// Python's re.match anchors only the start, which
			// FindStringIndex at position 0 reproduces.
			if loc := p.re.FindStringIndex(path); loc != nil && loc[0] == 0 {
				return p.limit, true
			}
			continue
		}
		if strings.HasPrefix(path, p.pattern) {
			return p.limit, true
		}
	}
	return 0, false
}
