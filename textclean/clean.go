// Package textclean implements the deterministic wiki-markup reduction used
// by the revision transformer: template removal, link simplification, and
// HTML tag stripping. There is no third-party wiki-markup parser in the
// example corpus and none ships a MediaWiki-dialect cleaner, so this stays
// on the standard library (see DESIGN.md).
package textclean

import (
	"regexp"
	"strings"
)

var (
	templateRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	linkPipeRe = regexp.MustCompile(`\[\[[^\]|]*\|([^\]]*)\]\]`)
	linkPlainRe = regexp.MustCompile(`\[\[([^\]]*)\]\]`)
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
	commentRe  = regexp.MustCompile(`<!--.*?-->`)
	multiSpace = regexp.MustCompile(`[ \t]{2,}`)
	multiBlank = regexp.MustCompile(`\n{3,}`)
)

// Clean reduces raw wiki markup to plain text. The reduction is deterministic
// and idempotent: Clean(Clean(s)) == Clean(s).
//
// Steps, applied in order:
//  1. strip HTML comments
//  2. repeatedly remove the innermost {{template}} until none remain
//     (templates can nest, so a single pass is not enough)
//  3. rewrite [[target|label]] links to their label, and [[target]] links to
//     their target
//  4. strip remaining HTML tags
//  5. collapse runs of whitespace introduced by the above
func Clean(raw string) string {
	s := commentRe.ReplaceAllString(raw, "")

	for {
		stripped := templateRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	s = linkPipeRe.ReplaceAllString(s, "$1")
	s = linkPlainRe.ReplaceAllString(s, "$1")
	s = htmlTagRe.ReplaceAllString(s, "")

	s = multiSpace.ReplaceAllString(s, " ")
	s = multiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// IsRedirect reports whether raw's first nine bytes equal "#REDIRECT",
// case-insensitive. Per §4.3 step 2 this check runs against the raw text,
// never the cleaned text, and only at byte offset zero.
func IsRedirect(raw string) bool {
	if len(raw) < 9 {
		return false
	}
	return strings.EqualFold(raw[:9], "#REDIRECT")
}

// NormalizeTimestamp rewrites a dump timestamp from its ISO-8601 form
// ("2020-01-02T03:04:05Z") to the relational-load form ("2020-01-02
// 03:04:05") expected downstream: the "T" separator becomes a space and a
// trailing "Z" is dropped. Any other suffix is left untouched rather than
// guessed at.
func NormalizeTimestamp(ts string) string {
	ts = strings.TrimSuffix(ts, "Z")
	return strings.Replace(ts, "T", " ", 1)
}
