package identity

import (
	"context"
	"strconv"

	"wikidat.dev/loader"
	"wikidat.dev/wiki"
	"wikidat.dev/wikilog"
)

// specialUserRows are the three synthetic user rows every language run
// inserts once, regardless of whether any revision actually used them.
var specialUserRows = []struct {
	UserID   int64
	Username string
}{
	{UserID: 0, Username: "Anonymous user"},
	{UserID: -1, Username: "NA"},
	{UserID: -2, Username: "Missing ID"},
}

// Finalizer performs the one-time, end-of-run write described in §4.5
// finalize: three special user rows, then a bulk load of each IdentityMap
// partition. user, revision_IP, and revision_user_zero are three of the six
// relational tables (§6), so Finalizer writes them through the same
// TabularLoader, and so the same MySQL connection and LOAD-DATA path, that
// page/revision/logging rows go through rather than a connection of its own.
type Finalizer struct {
	loader *loader.TabularLoader
	log    *wikilog.ContextLogger
}

// NewFinalizer wraps an already-constructed tabular loader. Callers build tl
// against the same *sql.DB used for the per-dump relational writes so the
// finalize step lands in the same database as everything else.
func NewFinalizer(tl *loader.TabularLoader, log *wikilog.ContextLogger) *Finalizer {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "identity-finalizer"})
	}
	return &Finalizer{loader: tl, log: log}
}

// Finalize writes the special rows, then bulk-loads lang's partitions from
// the shared Service. Called once after all dump files for lang complete.
// Bulk-load failures go through TabularLoader's own retry-then-quarantine
// path (§4.6, §7 LoadError) rather than aborting the run.
func (f *Finalizer) Finalize(ctx context.Context, svc *Service, lang string, batchSize int) error {
	specialLines := make([]string, 0, len(specialUserRows))
	for _, row := range specialUserRows {
		specialLines = append(specialLines, userLine(row.UserID, row.Username))
	}
	if err := f.loader.LoadTable(ctx, "user", specialLines); err != nil {
		return err
	}

	snap := svc.Snapshot(lang)

	if len(snap.Users) > 0 {
		lines := make([]string, 0, len(snap.Users))
		for id, name := range snap.Users {
			lines = append(lines, userLine(id, name))
		}
		if err := f.loadPartition(ctx, "user", lines, batchSize); err != nil {
			return err
		}
	}

	if len(snap.AnonRevs) > 0 {
		lines := make([]string, 0, len(snap.AnonRevs))
		for revID, packed := range snap.AnonRevs {
			lines = append(lines, wiki.TabRow(strconv.FormatInt(revID, 10), wiki.EscapeField(packed)))
		}
		if err := f.loadPartition(ctx, "revision_IP", lines, batchSize); err != nil {
			return err
		}
	}

	if len(snap.UsersZero) > 0 {
		lines := make([]string, 0, len(snap.UsersZero))
		for revID, name := range snap.UsersZero {
			lines = append(lines, wiki.TabRow(strconv.FormatInt(revID, 10), wiki.EscapeField(name)))
		}
		if err := f.loadPartition(ctx, "revision_user_zero", lines, batchSize); err != nil {
			return err
		}
	}

	if svc.Degraded() {
		f.log.WithFields(map[string]interface{}{"lang": lang}).
			Warn("identity cache degraded during this run; partitions were served from in-memory state only")
	}
	return nil
}

func userLine(userID int64, username string) string {
	return wiki.TabRow(strconv.FormatInt(userID, 10), wiki.EscapeField(username))
}

// loadPartition splits lines into batchSize-sized chunks before each
// LoadTable call, matching the tabular loader's own flush threshold instead
// of handing it one unbounded batch.
func (f *Finalizer) loadPartition(ctx context.Context, table string, lines []string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(lines)
	}
	for start := 0; start < len(lines); start += batchSize {
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := f.loader.LoadTable(ctx, table, lines[start:end]); err != nil {
			return err
		}
	}
	return nil
}
