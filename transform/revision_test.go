package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikidat.dev/identity"
	"wikidat.dev/langpattern"
	"wikidat.dev/wiki"
)

func newTestRevisionWorker(t *testing.T, lang string) *RevisionWorker {
	t.Helper()
	svc := identity.NewService(nil, nil)
	w, err := NewRevisionWorker(lang, langpattern.Default(), svc, nil)
	require.NoError(t, err)
	return w
}

func TestNewRevisionWorker_UnsupportedLanguage(t *testing.T) {
	svc := identity.NewService(nil, nil)
	_, err := NewRevisionWorker("zzwiki", langpattern.Default(), svc, nil)
	require.Error(t, err)
}

func TestRevisionWorker_RedirectSkipsSearchDoc(t *testing.T) {
	w := newTestRevisionWorker(t, "enwiki")
	in := make(chan *wiki.Revision, 2)
	outRows := make(chan *wiki.RelationalRow, 2)
	outDocs := make(chan *wiki.SearchDocument, 2)

	in <- &wiki.Revision{
		RevID: 1, PageID: 1, Namespace: 0, Timestamp: "2020-01-01T00:00:00Z",
		Contributor: wiki.Contributor{Kind: wiki.ContributorAnonymous, IP: "10.0.0.1"},
		RawText:     "#REDIRECT [[Target]]", TextPresent: true,
		Lang: "enwiki",
	}
	in <- nil

	require.NoError(t, w.Run(context.Background(), in, outRows, outDocs))
	close(outRows)
	close(outDocs)

	var rows []*wiki.RelationalRow
	for r := range outRows {
		rows = append(rows, r)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, "revision", rows[0].Table)

	var docs []*wiki.SearchDocument
	for d := range outDocs {
		docs = append(docs, d)
	}
	assert.Empty(t, docs)
}

func TestRevisionWorker_FeaturedArticleAndTimestamp(t *testing.T) {
	w := newTestRevisionWorker(t, "enwiki")
	in := make(chan *wiki.Revision, 2)
	outRows := make(chan *wiki.RelationalRow, 2)
	outDocs := make(chan *wiki.SearchDocument, 2)

	in <- &wiki.Revision{
		RevID: 7, PageID: 3, ParentRevID: 6, Namespace: 0,
		Timestamp:   "2021-06-07T08:09:10Z",
		Contributor: wiki.Contributor{Kind: wiki.ContributorRegistered, UserID: 42, Username: "Alice"},
		RawText:     "Some article. {{Link FA|de}}", TextPresent: true,
		Comment: "edit", Lang: "enwiki",
	}
	in <- nil

	require.NoError(t, w.Run(context.Background(), in, outRows, outDocs))
	close(outRows)
	close(outDocs)

	row := <-outRows
	// minor, redirect, FA, FLIST, GA columns, then the comment
	assert.Contains(t, row.Line, "\t0\t0\t1\t0\t0\tedit\t")

	var docs []*wiki.SearchDocument
	for d := range outDocs {
		docs = append(docs, d)
	}
	require.Len(t, docs, 1)
	assert.Equal(t, int64(7), docs[0].ID)
	assert.Equal(t, "2021-06-07 08:09:10", docs[0].Timestamp)
	assert.Equal(t, int64(6), docs[0].ParentID)
	assert.NotContains(t, docs[0].Content, "{{")

	snap := w.Identity.Snapshot("enwiki")
	assert.Equal(t, "Alice", snap.Users[42])
}

func TestRevisionWorker_AbsentContributorYieldsMinusOne(t *testing.T) {
	w := newTestRevisionWorker(t, "enwiki")
	in := make(chan *wiki.Revision, 1)
	outRows := make(chan *wiki.RelationalRow, 1)
	outDocs := make(chan *wiki.SearchDocument, 1)

	in <- &wiki.Revision{RevID: 1, PageID: 1, Timestamp: "2020-01-01T00:00:00Z", Lang: "enwiki"}
	in <- nil

	require.NoError(t, w.Run(context.Background(), in, outRows, outDocs))
	close(outRows)

	row := <-outRows
	assert.Contains(t, row.Line, "\t-1\t")
}
