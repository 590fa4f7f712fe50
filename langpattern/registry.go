// Package langpattern holds the per-language regular expressions used to
// detect featured-article, featured-list, and good-article markers in
// revision text. The registry is a plain data table, not per-language
// branching logic, except for the fawiki/cawiki two-capture-group exception
// documented alongside IsFeaturedArticle.
package langpattern

import "regexp"

// Registry is a set of three lookup tables, language code to regex, mirroring
// the FA/FLIST/GA mappings named in SPEC_FULL.md §6.
type Registry struct {
	FA    map[string]*regexp.Regexp
	FList map[string]*regexp.Regexp
	GA    map[string]*regexp.Regexp
}

// twoGroupException lists the languages whose FA template comes in two
// mutually exclusive variants, captured as two groups of the same pattern;
// a match counts as featured when exactly one of the two groups did not
// participate in the match.
var twoGroupException = map[string]bool{
	"fawiki": true,
	"cawiki": true,
}

// Default returns the built-in registry. Real deployments may load an
// equivalent table from a config file; the shape is identical.
func Default() *Registry {
	return &Registry{
		FA: map[string]*regexp.Regexp{
			"enwiki": regexp.MustCompile(`(?i)\{\{\s*(Link FA\|[a-z-]+)\s*\}\}`),
			"dewiki": regexp.MustCompile(`(?i)\{\{\s*(Exzellent\|[a-zA-Z-]+)\s*\}\}`),
			"fawiki": regexp.MustCompile(`(?i)\{\{\s*(?:لینک بن)\|?(fa)?\}\}|\{\{\s*(?:مقاله برگزیده)()\}\}`),
			"cawiki": regexp.MustCompile(`(?i)\{\{\s*(?:Enllaç AD)\|?(ca)?\}\}|\{\{\s*(?:Article de qualitat)()\}\}`),
		},
		FList: map[string]*regexp.Regexp{
			"enwiki": regexp.MustCompile(`(?i)\{\{\s*(Link FL\|[a-z-]+)\s*\}\}`),
		},
		GA: map[string]*regexp.Regexp{
			"enwiki": regexp.MustCompile(`(?i)\{\{\s*(Link GA\|[a-z-]+)\s*\}\}`),
		},
	}
}

// Supports reports whether lang appears in at least one of the three tables.
// A caller unable to find the language in any of them must raise
// UnsupportedLanguage at startup, never per-record.
func (r *Registry) Supports(lang string) bool {
	if _, ok := r.FA[lang]; ok {
		return true
	}
	if _, ok := r.FList[lang]; ok {
		return true
	}
	if _, ok := r.GA[lang]; ok {
		return true
	}
	return false
}

// IsFeaturedArticle reports whether text matches lang's FA pattern.
//
// A one-capture-group match always counts. A two-capture-group match counts
// only for the languages in twoGroupException, and only when exactly one of
// the two groups did not participate in the match (the two captures are
// mutually exclusive template variants, not independent conditions). A group
// that matched the empty string counts as present.
func (r *Registry) IsFeaturedArticle(lang, text string) bool {
	re, ok := r.FA[lang]
	if !ok {
		return false
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return false
	}
	// loc holds a start/end pair per group; a start of -1 marks a group
	// that did not participate in the match.
	switch len(loc)/2 - 1 {
	case 1:
		return true
	case 2:
		if !twoGroupException[lang] {
			return false
		}
		return (loc[2] < 0) != (loc[4] < 0)
	default:
		return false
	}
}

// IsFeaturedList reports whether text matches lang's FLIST pattern; only a
// single-capture-group match counts, no per-language exception applies here.
func (r *Registry) IsFeaturedList(lang, text string) bool {
	return singleGroupMatch(r.FList, lang, text)
}

// IsGoodArticle reports whether text matches lang's GA pattern; only a
// single-capture-group match counts.
func (r *Registry) IsGoodArticle(lang, text string) bool {
	return singleGroupMatch(r.GA, lang, text)
}

func singleGroupMatch(table map[string]*regexp.Regexp, lang, text string) bool {
	re, ok := table[lang]
	if !ok {
		return false
	}
	m := re.FindStringSubmatch(text)
	return m != nil && len(m)-1 == 1
}
