// Package glob implements shell-style pattern matching in two
// flavors. Match follows fnmatch: `*` and `?` also cross path
// separators, the semantics agent trigger patterns are written against
// (`release/*` matches `release/1.2`). MatchPath follows filesystem
// glob expansion: `*` and `?` stop at `/` and only a `**` segment
// recurses, the semantics include patterns are written against.
// Matching is case-sensitive and never falls back to regular
// expressions.
package glob

import "strings"

// Match reports whether name matches the shell pattern. Supported
// metacharacters: `*` (any run of characters), `?` (any single
// character) and `[...]` / `[!...]` character classes.
func Match(pattern, name string) bool {
	p, n := 0, 0
	starP, starN := -1, 0

	for n < len(name) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				// Record the star; try the shortest match first and
				// extend on backtrack.
				starP, starN = p, n
				p++
				continue
			case '?':
				p++
				n++
				continue
			case '[':
				if next, ok := matchClass(pattern, p, name[n]); ok {
					p = next
					n++
					continue
				}
			default:
				if pattern[p] == name[n] {
					p++
					n++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starN++
		p = starP + 1
		n = starN
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// MatchPath matches pattern against a slash-separated path, segment by
// segment: `*` and `?` never cross a separator, and a segment that is
// exactly `**` spans any number of them. `docs/*.md` matches
// `docs/readme.md` but not `docs/nested/deep.md`; `docs/**` matches
// both.
func MatchPath(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(ps, ns []string) bool {
	for len(ps) > 0 {
		if ps[0] == "**" {
			for i := 0; i <= len(ns); i++ {
				if matchSegments(ps[1:], ns[i:]) {
					return true
				}
			}
			return false
		}
		if len(ns) == 0 || !Match(ps[0], ns[0]) {
			return false
		}
		ps, ns = ps[1:], ns[1:]
	}
	return len(ns) == 0
}

// MatchAny reports whether name matches at least one of the patterns.
func MatchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if Match(pattern, name) {
			return true
		}
	}
	return false
}

// matchClass matches one character against the class starting at
// pattern[start] (which must be '['). It returns the index just past
// the closing bracket and whether the character matched. A malformed
// class (no closing bracket) never matches.
func matchClass(pattern string, start int, c byte) (int, bool) {
	i := start + 1
	negate := false
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		negate = true
		i++
	}

	matched := false
	first := true
	for i < len(pattern) {
		if pattern[i] == ']' && !first {
			if negate {
				matched = !matched
			}
			return i + 1, matched
		}
		first = false

		lo := pattern[i]
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			hi := pattern[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 3
			continue
		}
		if lo == c {
			matched = true
		}
		i++
	}
	return start, false
}
