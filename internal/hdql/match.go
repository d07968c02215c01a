package hdql

import (
	"path"
	"strings"
)

// DefaultMaxEditDistance bounds fuzzy-match tolerance for identifiers ending
// in "~".
const DefaultMaxEditDistance = 2

// hasWildcard reports whether an identifier needs pattern matching rather
// than an exact lookup.
func hasWildcard(identifier string) bool {
	return strings.ContainsAny(identifier, "*?~")
}

// matchIdentifier applies the pattern to an entity name. A trailing "~"
// selects bounded edit-distance fuzzy matching; anything else is a glob.
func matchIdentifier(name, pattern string, maxDistance int) bool {
	if stripped, ok := strings.CutSuffix(pattern, "~"); ok {
		return editDistance(name, stripped) <= maxDistance
	}
	return globMatch(name, pattern)
}

// globMatch applies standard glob semantics (*, ?, character classes) to the
// whole name. A malformed pattern matches nothing.
func globMatch(name, pattern string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// editDistance computes the Levenshtein distance between two strings with
// the classic O(n·m) dynamic program, keeping two rows.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
