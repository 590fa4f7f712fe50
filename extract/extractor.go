// Package extract implements the XML streaming extractor described in
// SPEC_FULL.md §4.1: it reads one (possibly compressed) MediaWiki dump file
// token by token, producing Page, Revision, and LogItem records onto
// separate channels without ever materializing the whole document.
package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// Extractor streams one dump file and fans its records out to the declared
// number of downstream workers.
type Extractor struct {
	Path    string
	Lang    string
	Kind    wiki.DumpKind
	PageFan int // consumer cardinality for the page channel
	RevFan  int // consumer cardinality for the revision channel
	LogFan  int // consumer cardinality for the log-item channel

	Log *wikilog.ContextLogger
}

// Channels groups the three output streams an Extractor run writes to. A
// revision-history dump uses Pages and Revisions; a logging dump uses
// LogItems only. Unused channels may be nil.
type Channels struct {
	Pages     chan<- *wiki.Page
	Revisions chan<- *wiki.Revision
	LogItems  chan<- *wiki.LogItem
}

// Run streams Path to completion, emitting records on out and then the
// declared number of end-of-stream sentinels (nil values) per channel. It
// returns an *ExtractionError on structural XML failure; malformed
// individual sub-elements are skipped with a warning rather than aborting
// the dump.
func (e *Extractor) Run(ctx context.Context, out Channels) error {
	if e.Log == nil {
		e.Log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "extractor"})
	}
	log := e.Log.WithFields(map[string]interface{}{"path": e.Path, "lang": e.Lang, "kind": e.Kind})
	defer wikilog.LogDuration(log, "extract")()

	reader, closer, err := openDecompressed(e.Path)
	if err != nil {
		return &wikierr.ExtractionError{Path: e.Path, Err: err}
	}
	defer closer.Close()

	counter := &countingReader{r: reader}
	decoder := xml.NewDecoder(counter)

	err = e.stream(ctx, decoder, out, log)

	sendSentinels(out.Pages, e.PageFan)
	sendSentinels(out.Revisions, e.RevFan)
	sendSentinels(out.LogItems, e.LogFan)

	if err != nil {
		return &wikierr.ExtractionError{Path: e.Path, ByteOffset: counter.n, Err: err}
	}
	return nil
}

func (e *Extractor) stream(ctx context.Context, decoder *xml.Decoder, out Channels, log *wikilog.ContextLogger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "page":
			if err := e.handlePage(ctx, decoder, start, out, log); err != nil {
				return err
			}
		case "logitem":
			if err := e.handleLogItem(decoder, start, out, log); err != nil {
				return err
			}
		}
	}
}

func (e *Extractor) handlePage(ctx context.Context, decoder *xml.Decoder, start xml.StartElement, out Channels, log *wikilog.ContextLogger) error {
	var px pageXML
	if err := decoder.DecodeElement(&px, &start); err != nil {
		log.WithError(err).Warn("skipping malformed <page> element")
		return nil
	}

	page := &wiki.Page{
		PageID:       px.ID,
		Namespace:    px.Namespace,
		Title:        px.Title,
		Restrictions: px.Restrictions,
	}
	if px.Redirect != nil {
		page.RedirectTo = px.Redirect.Title
	}

	if out.Pages != nil {
		select {
		case out.Pages <- page:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, rx := range px.Revisions {
		rev, err := toRevision(rx, px.ID, px.Namespace, e.Lang)
		if err != nil {
			log.WithError(err).Warn("skipping malformed <revision> element")
			continue
		}
		if out.Revisions != nil {
			select {
			case out.Revisions <- rev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func toRevision(rx revisionXML, pageID int64, ns int, lang string) (*wiki.Revision, error) {
	rev := &wiki.Revision{
		RevID:       rx.ID,
		PageID:      pageID,
		Namespace:   ns,
		ParentRevID: rx.ParentID,
		Timestamp:   rx.Timestamp,
		Contributor: rx.Contributor.toContributor(),
		Comment:     rx.Comment,
		IsMinor:     rx.Minor != nil,
		Lang:        lang,
	}
	if rx.Text != nil {
		rev.RawText = rx.Text.Value
		rev.TextPresent = true
	}
	if rev.RevID == 0 {
		return nil, fmt.Errorf("revision missing <id>")
	}
	return rev, nil
}

func (e *Extractor) handleLogItem(decoder *xml.Decoder, start xml.StartElement, out Channels, log *wikilog.ContextLogger) error {
	var lx logItemXML
	if err := decoder.DecodeElement(&lx, &start); err != nil {
		log.WithError(err).Warn("skipping malformed <logitem> element")
		return nil
	}
	if lx.ID == 0 {
		log.Warn("skipping <logitem> missing <id>")
		return nil
	}

	item := &wiki.LogItem{
		LogID:       lx.ID,
		Type:        lx.Type,
		Action:      lx.action(),
		Timestamp:   lx.Timestamp,
		Contributor: lx.Contributor.toContributor(),
		TargetTitle: lx.Title,
		Params:      lx.Params,
		Comment:     lx.Comment,
		Lang:        e.Lang,
	}
	if out.LogItems != nil {
		out.LogItems <- item
	}
	return nil
}

func sendSentinels[T any](ch chan<- *T, count int) {
	if ch == nil {
		return
	}
	for i := 0; i < count; i++ {
		ch <- nil
	}
}

// countingReader tracks bytes consumed so ExtractionError can report the
// approximate byte offset of a structural parse failure.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
