package transform

import (
	"context"
	"strconv"

	"wikidat.dev/identity"
	"wikidat.dev/textclean"
	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// LogItemWorker turns LogItem records into logging-table rows, performing
// the same timestamp normalization and contributor resolution as the
// revision transformer (§4.4).
type LogItemWorker struct {
	Lang     string
	Identity *identity.Service
	Log      *wikilog.ContextLogger
}

func NewLogItemWorker(lang string, svc *identity.Service, log *wikilog.ContextLogger) *LogItemWorker {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "transform.logitem"})
	}
	return &LogItemWorker{Lang: lang, Identity: svc, Log: log}
}

func (w *LogItemWorker) Run(ctx context.Context, in <-chan *wiki.LogItem, out chan<- *wiki.RelationalRow) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-in:
			if !ok || item == nil {
				return nil
			}
			row, err := w.transform(ctx, item)
			if err != nil {
				w.Log.WithError(err).Warn((&wikierr.RecordError{Stage: "transform.logitem", Detail: strconv.FormatInt(item.LogID, 10), Err: err}).Error())
				continue
			}
			select {
			case out <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *LogItemWorker) transform(ctx context.Context, item *wiki.LogItem) (*wiki.RelationalRow, error) {
	userColumn, err := w.resolveContributor(ctx, item)
	if err != nil {
		return nil, err
	}

	line := tabRow(
		strconv.FormatInt(item.LogID, 10),
		escapeField(item.Type),
		escapeField(item.Action),
		textclean.NormalizeTimestamp(item.Timestamp),
		strconv.FormatInt(userColumn, 10),
		escapeField(item.TargetTitle),
		escapeField(item.Params),
		orNull(escapeField(item.Comment)),
	)
	return &wiki.RelationalRow{Table: "logging", Line: line}, nil
}

func (w *LogItemWorker) resolveContributor(ctx context.Context, item *wiki.LogItem) (int64, error) {
	c := item.Contributor
	switch c.Kind {
	case wiki.ContributorAnonymous:
		if err := w.Identity.RecordAnon(ctx, w.Lang, item.LogID, c.IP); err != nil {
			return 0, err
		}
	case wiki.ContributorMissingID:
		if err := w.Identity.RecordMissing(ctx, w.Lang, item.LogID, c.Username); err != nil {
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
