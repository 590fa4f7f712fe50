package transform

import (
	"context"
	"strconv"

	"wikidat.dev/identity"
	"wikidat.dev/langpattern"
	"wikidat.dev/textclean"
	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// RevisionWorker turns Revision records into a revision-table row and,
// unless the revision is a redirect, a search document. It performs text
// cleaning, redirect and featured-content detection, contributor
// resolution against the shared IdentityService, and timestamp
// normalization, in that order (§4.3).
type RevisionWorker struct {
	Lang     string
	Registry *langpattern.Registry
	Identity *identity.Service
	Log      *wikilog.ContextLogger
}

// NewRevisionWorker validates lang against registry up front: an unsupported
// language is a startup failure, never a per-record one.
func NewRevisionWorker(lang string, registry *langpattern.Registry, svc *identity.Service, log *wikilog.ContextLogger) (*RevisionWorker, error) {
	if !registry.Supports(lang) {
		return nil, &wikierr.UnsupportedLanguageError{Lang: lang}
	}
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "transform.revision"})
	}
	return &RevisionWorker{Lang: lang, Registry: registry, Identity: svc, Log: log}, nil
}

// Run reads from in until the end-of-stream sentinel and returns. Per-record
// failures are logged and the record dropped; the worker itself does not
// terminate early.
func (w *RevisionWorker) Run(ctx context.Context, in <-chan *wiki.Revision, outRows chan<- *wiki.RelationalRow, outDocs chan<- *wiki.SearchDocument) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rev, ok := <-in:
			if !ok || rev == nil {
				return nil
			}
			row, doc, emitDoc, err := w.transform(ctx, rev)
			if err != nil {
				w.Log.WithError(err).Warn((&wikierr.RecordError{Stage: "transform.revision", Detail: strconv.FormatInt(rev.RevID, 10), Err: err}).Error())
				continue
			}
			select {
			case outRows <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
			if emitDoc {
				select {
				case outDocs <- doc:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (w *RevisionWorker) transform(ctx context.Context, rev *wiki.Revision) (*wiki.RelationalRow, *wiki.SearchDocument, bool, error) {
	cleaned := ""
	isRedirect := false
	if rev.TextPresent {
		cleaned = textclean.Clean(rev.RawText)
		isRedirect = textclean.IsRedirect(rev.RawText)
	}
	textLength := len(cleaned)

	var isFA, isFList, isGA bool
	if rev.Namespace == 0 {
		isFA = w.Registry.IsFeaturedArticle(rev.Lang, rev.RawText)
		isFList = w.Registry.IsFeaturedList(rev.Lang, rev.RawText)
		isGA = w.Registry.IsGoodArticle(rev.Lang, rev.RawText)
	}

	userColumn, err := w.resolveContributor(ctx, rev)
	if err != nil {
		return nil, nil, false, err
	}

	timestamp := textclean.NormalizeTimestamp(rev.Timestamp)

	row := &wiki.RelationalRow{
		Table: "revision",
		Line: tabRow(
			strconv.FormatInt(rev.RevID, 10),
			strconv.FormatInt(rev.PageID, 10),
			strconv.FormatInt(rev.ParentRevID, 10),
			timestamp,
			strconv.FormatInt(userColumn, 10),
			strconv.Itoa(textLength),
			formatBool(rev.IsMinor),
			formatBool(isRedirect),
			formatBool(isFA),
			formatBool(isFList),
			formatBool(isGA),
			orNull(escapeField(rev.Comment)),
			escapeField(cleaned),
		),
	}

	if isRedirect {
		return row, nil, false, nil
	}

	parentID := rev.ParentRevID
	if parentID == 0 {
		parentID = -1
	}
	doc := &wiki.SearchDocument{
		ID:        rev.RevID,
		Timestamp: timestamp,
		ParentID:  parentID,
		PageID:    rev.PageID,
		Comment:   orNull(rev.Comment),
		Content:   cleaned,
	}
	return row, doc, true, nil
}

func (w *RevisionWorker) resolveContributor(ctx context.Context, rev *wiki.Revision) (int64, error) {
	c := rev.Contributor
	switch c.Kind {
	case wiki.ContributorAnonymous:
		if err := w.Identity.RecordAnon(ctx, w.Lang, rev.RevID, c.IP); err != nil {
			return 0, err
		}
	case wiki.ContributorMissingID:
		if err := w.Identity.RecordMissing(ctx, w.Lang, rev.RevID, c.Username); err != nil {
			return 0, err
		}
	case wiki.ContributorRegistered:
		var uname *string
		if c.Username != "" {
			uname = &c.Username
		}
		if err := w.Identity.RecordUser(ctx, w.Lang, c.UserID, uname); err != nil {
			return 0, err
		}
	}
	return c.UserColumn(), nil
}
