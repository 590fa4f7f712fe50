package transform

import "wikidat.dev/wiki"

// escapeField, tabRow, formatBool, and orNull are thin aliases over the
// shared wiki row-formatting helpers, kept so call sites in this package
// read the same as before the helpers moved to wiki for reuse by identity.
func escapeField(s string) string { return wiki.EscapeField(s) }

func tabRow(fields ...string) string { return wiki.TabRow(fields...) }

func formatBool(b bool) string { return wiki.FormatBool(b) }

func orNull(s string) string { return wiki.OrNull(s) }
