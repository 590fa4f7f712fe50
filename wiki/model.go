// Package wiki defines the record types that flow through the dump ingestion
// pipeline: pages, revisions, log items, contributors, and the load-ready
// relational rows and search documents, plus the row-encoding helpers.
package wiki

import (
	"fmt"
	"strings"
)

// DumpKind selects which record streams a dump file produces.
type DumpKind string

const (
	DumpKindRevisionHistory DumpKind = "revision-history"
	DumpKindStubMeta        DumpKind = "stub-meta"
	DumpKindLogging         DumpKind = "logging"
)

// Dump describes one compressed XML file queued for ingestion.
type Dump struct {
	Path     string
	Lang     string
	Kind     DumpKind
}

// Page carries the page-context attributes captured from a <page> element.
type Page struct {
	PageID       int64
	Namespace    int
	Title        string
	RedirectTo   string // empty when the page is not itself a redirect stub
	Restrictions string
}

// Revision carries one <revision> child of a page, plus the back-reference
// to its enclosing page needed by downstream transformers.
type Revision struct {
	RevID         int64
	PageID        int64
	Namespace     int
	ParentRevID   int64 // 0 when absent
	Timestamp     string // raw ISO-8601 as read from the dump
	Contributor   Contributor
	Comment       string
	IsMinor       bool
	RawText       string
	TextPresent   bool
	Lang          string
}

// LogItem carries one <logitem> element from a logging dump.
type LogItem struct {
	LogID       int64
	Type        string
	Action      string
	Timestamp   string
	Contributor Contributor
	TargetTitle string
	Params      string
	Comment     string
	Lang        string
}

// ContributorKind tags the four ways a revision or log item can be attributed.
type ContributorKind int

const (
	ContributorAbsent ContributorKind = iota
	ContributorAnonymous
	ContributorRegistered
	ContributorMissingID
)

// Contributor is a tagged variant over the four contributor shapes the dump
// schema can produce. Callers pattern-match on Kind rather than inspecting
// the other fields directly.
type Contributor struct {
	Kind     ContributorKind
	IP       string // set when Kind == ContributorAnonymous
	UserID   int64  // set when Kind == ContributorRegistered or ContributorMissingID
	Username string // set when Kind == ContributorRegistered (optional) or ContributorMissingID
}

// UserColumn returns the numeric value stored in the revision/logging user
// column for this contributor, per the four-way mapping in the component spec.
func (c Contributor) UserColumn() int64 {
	switch c.Kind {
	case ContributorAnonymous:
		return 0
	case ContributorRegistered:
		return c.UserID
	case ContributorMissingID:
		return -2
	default:
		return -1
	}
}

func (c Contributor) String() string {
	switch c.Kind {
	case ContributorAnonymous:
		return fmt.Sprintf("Anonymous(%s)", c.IP)
	case ContributorRegistered:
		return fmt.Sprintf("Registered(%d,%q)", c.UserID, c.Username)
	case ContributorMissingID:
		return fmt.Sprintf("MissingID(%q)", c.Username)
	default:
		return "Absent"
	}
}

// RelationalRow is a load-ready record targeted at a LOAD-DATA-style bulk
// ingest: one tab-delimited line plus the table it belongs to.
type RelationalRow struct {
	Table string
	Line  string // already tab-separated, newline-terminated
}

// EscapeField prepares a string for inclusion in a tab-delimited relational
// row: backslashes and control characters are escaped so the bulk-load
// dialect can round-trip embedded tabs and newlines unambiguously.
func EscapeField(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// TabRow joins already-escaped fields with tabs and a trailing newline, the
// shape a LOAD-DATA-style bulk ingest expects.
func TabRow(fields ...string) string {
	return strings.Join(fields, "\t") + "\n"
}

// FormatBool renders a boolean the way the bulk-load dialect expects it.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// OrNull maps an empty field to the bulk-load dialect's NULL token.
func OrNull(s string) string {
	if s == "" {
		return "NULL"
	}
	return s
}

// SearchDocument is a load-ready record targeted at the search index bulk
// endpoint, per §4.3 step 6.
type SearchDocument struct {
	ID        int64  `json:"_id"`
	Timestamp string `json:"timestamp"`
	ParentID  int64  `json:"parent_id"`
	PageID    int64  `json:"page_id"`
	Comment   string `json:"comment"`
	Content   string `json:"content"`
}
