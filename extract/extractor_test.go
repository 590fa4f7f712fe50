package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikidat.dev/wiki"
)

const samplePageDump = `<mediawiki>
  <page>
    <title>Example</title>
    <ns>0</ns>
    <id>5</id>
    <revision>
      <id>100</id>
      <parentid>0</parentid>
      <timestamp>2020-01-02T03:04:05Z</timestamp>
      <contributor><ip>10.0.0.1</ip></contributor>
      <comment>first</comment>
      <text>#redirect [[X]]</text>
    </revision>
    <revision>
      <id>101</id>
      <parentid>100</parentid>
      <timestamp>2020-01-03T03:04:05Z</timestamp>
      <contributor><username>Bob</username><id>0</id></contributor>
      <comment>second</comment>
      <text>hello world</text>
    </revision>
  </page>
</mediawiki>`

func writeTempDump(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractor_EmitsPageThenRevisions(t *testing.T) {
	path := writeTempDump(t, "dump.xml", samplePageDump)

	pages := make(chan *wiki.Page, 10)
	revs := make(chan *wiki.Revision, 10)

	e := &Extractor{Path: path, Lang: "enwiki", Kind: wiki.DumpKindRevisionHistory, PageFan: 1, RevFan: 1}
	err := e.Run(context.Background(), Channels{Pages: pages, Revisions: revs})
	require.NoError(t, err)

	close(pages)
	close(revs)

	var gotPages []*wiki.Page
	for p := range pages {
		gotPages = append(gotPages, p)
	}
	require.Len(t, gotPages, 2) // 1 page + 1 sentinel
	assert.Equal(t, int64(5), gotPages[0].PageID)
	assert.Nil(t, gotPages[1])

	var gotRevs []*wiki.Revision
	for r := range revs {
		gotRevs = append(gotRevs, r)
	}
	require.Len(t, gotRevs, 3) // 2 revisions + 1 sentinel
	assert.Equal(t, int64(100), gotRevs[0].RevID)
	assert.Equal(t, wiki.ContributorAnonymous, gotRevs[0].Contributor.Kind)
	assert.Equal(t, int64(101), gotRevs[1].RevID)
	assert.Equal(t, wiki.ContributorMissingID, gotRevs[1].Contributor.Kind)
	assert.Equal(t, "Bob", gotRevs[1].Contributor.Username)
	assert.Nil(t, gotRevs[2])
}

func TestExtractor_MalformedXMLIsExtractionError(t *testing.T) {
	path := writeTempDump(t, "dump.xml", "<mediawiki><page><title>x</title>")

	pages := make(chan *wiki.Page, 10)
	revs := make(chan *wiki.Revision, 10)

	e := &Extractor{Path: path, Lang: "enwiki", Kind: wiki.DumpKindRevisionHistory, PageFan: 1, RevFan: 1}
	err := e.Run(context.Background(), Channels{Pages: pages, Revisions: revs})
	require.Error(t, err)
}

func TestExtractor_LogItems(t *testing.T) {
	const dump = `<mediawiki>
  <logitem>
    <id>9</id>
    <timestamp>2021-05-06T01:02:03Z</timestamp>
    <contributor><username>Carol</username><id>3</id></contributor>
    <type>delete</type>
    <action>delete</action>
    <logtitle>Some Page</logtitle>
    <params></params>
    <comment>cleanup</comment>
  </logitem>
</mediawiki>`
	path := writeTempDump(t, "dump.xml", dump)

	logs := make(chan *wiki.LogItem, 10)
	e := &Extractor{Path: path, Lang: "enwiki", Kind: wiki.DumpKindLogging, LogFan: 2}
	err := e.Run(context.Background(), Channels{LogItems: logs})
	require.NoError(t, err)
	close(logs)

	var got []*wiki.LogItem
	for l := range logs {
		got = append(got, l)
	}
	require.Len(t, got, 3) // 1 log item + 2 sentinels
	assert.Equal(t, int64(9), got[0].LogID)
	assert.Equal(t, "delete", got[0].Action)
}
