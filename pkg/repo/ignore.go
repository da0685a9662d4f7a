package repo

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreChecker decides which working-tree paths are left out of snapshots.
type IgnoreChecker struct {
	patterns []ignorePattern

	dirPrefixPatterns   map[string][]int
	ancestorPatterns    map[string][]int // match any ancestor directory by name
	exactBasePatterns   map[string][]int
	exactPathPatterns   map[string][]int
	wildcardBasePattern []int
	wildcardPathPattern []int
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // match against the full relative path, not the basename
	anyDepth bool // also matches when any ancestor directory has this name
	regex    *regexp.Regexp
}

// NewIgnoreChecker builds a checker that always ignores storeName at any
// depth, followed by the given gitignore-style patterns. A pattern ending in
// "/" matches the directory at that root-relative path and everything below
// it. Later patterns win, and "!" negates.
func NewIgnoreChecker(storeName string, patterns []string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	if storeName != "" {
		ic.patterns = append(ic.patterns, ignorePattern{pattern: storeName, anyDepth: true})
	}
	for _, line := range patterns {
		if p := parseLine(line); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	ic.compile()
	return ic
}

// parseLine parses a single pattern. Returns nil for blanks and comments.
func parseLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}

	p.hasSlash = strings.Contains(line, "/")
	p.pattern = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p
}

// IsIgnored reports whether rel, a path relative to the repository root,
// should be skipped. isDir tells whether rel itself is a directory.
//
// Last matching pattern wins.
func (ic *IgnoreChecker) IsIgnored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)

	lastMatch := -1
	ignored := false
	apply := func(idx int) {
		if idx > lastMatch {
			lastMatch = idx
			ignored = !ic.patterns[idx].negated
		}
	}
	applyAll := func(idxs []int) {
		for _, idx := range idxs {
			apply(idx)
		}
	}

	// Directory patterns match the path itself or any ancestor.
	if isDir {
		applyAll(ic.dirPrefixPatterns[rel])
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			applyAll(ic.dirPrefixPatterns[rel[:i]])
			applyAll(ic.ancestorPatterns[path.Base(rel[:i])])
		}
	}

	applyAll(ic.exactPathPatterns[rel])
	applyAll(ic.exactBasePatterns[base])

	for _, idx := range ic.wildcardPathPattern {
		if ic.patterns[idx].match(rel) {
			apply(idx)
		}
	}
	for _, idx := range ic.wildcardBasePattern {
		if ic.patterns[idx].match(base) {
			apply(idx)
		}
	}

	return ignored
}

func (ic *IgnoreChecker) compile() {
	ic.dirPrefixPatterns = make(map[string][]int)
	ic.exactBasePatterns = make(map[string][]int)
	ic.exactPathPatterns = make(map[string][]int)
	ic.ancestorPatterns = make(map[string][]int)

	for idx, p := range ic.patterns {
		if p.anyDepth {
			ic.dirPrefixPatterns[p.pattern] = append(ic.dirPrefixPatterns[p.pattern], idx)
			ic.ancestorPatterns[p.pattern] = append(ic.ancestorPatterns[p.pattern], idx)
		}
		if p.dirOnly {
			ic.dirPrefixPatterns[p.pattern] = append(ic.dirPrefixPatterns[p.pattern], idx)
			continue
		}

		literal := p.regex == nil && !strings.ContainsAny(p.pattern, "*?[")
		switch {
		case literal && p.hasSlash:
			ic.exactPathPatterns[p.pattern] = append(ic.exactPathPatterns[p.pattern], idx)
		case literal:
			ic.exactBasePatterns[p.pattern] = append(ic.exactBasePatterns[p.pattern], idx)
		case p.hasSlash:
			ic.wildcardPathPattern = append(ic.wildcardPathPattern, idx)
		default:
			ic.wildcardBasePattern = append(ic.wildcardBasePattern, idx)
		}
	}
}

func (p *ignorePattern) match(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := path.Match(p.pattern, target)
	return matched
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				// zero or more whole segments
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			if strings.IndexByte(`.+()|[]{}^$\`, ch) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
