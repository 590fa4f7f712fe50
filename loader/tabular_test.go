package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikidat.dev/wiki"
)

func TestTabularLoader_FlushFailureQuarantinesBatch(t *testing.T) {
	dir := t.TempDir()
	l := NewTabularLoader(nil, 2, dir, nil)

	in := make(chan *wiki.RelationalRow, 4)
	in <- &wiki.RelationalRow{Table: "page", Line: "1\t0\ttitle\t\t\n"}
	in <- &wiki.RelationalRow{Table: "page", Line: "2\t0\ttitle2\t\t\n"}
	in <- nil // one producer's end-of-stream sentinel

	err := l.Run(context.Background(), in, 1)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "page")
	assert.Contains(t, entries[0].Name(), "quarantine")

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "title")
	assert.Contains(t, string(data), "title2")
}

func TestTabularLoader_FlushesOnEndOfStreamRemainder(t *testing.T) {
	dir := t.TempDir()
	l := NewTabularLoader(nil, 100, dir, nil) // threshold never reached mid-stream

	in := make(chan *wiki.RelationalRow, 4)
	in <- &wiki.RelationalRow{Table: "revision", Line: "1\t1\t0\tts\t0\t0\t0\t0\t0\t0\t0\tNULL\t\n"}
	in <- nil
	in <- nil // two producers (e.g. two revision-worker instances)

	err := l.Run(context.Background(), in, 2)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1) // the single remainder row still gets flushed and quarantined
}
