package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kivik "github.com/go-kivik/kivik/v4"

	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

var errNoSearchConnection = errors.New("loader: no search index connection configured")

// SearchLoader accumulates SearchDocument values in memory and issues a
// single bulk-document request once batchDocs have accumulated, or on
// end-of-stream.
type SearchLoader struct {
	db            *kivik.DB
	batchDocs     int
	quarantineDir string
	backoff       time.Duration
	log           *wikilog.ContextLogger

	state *batchState
	batch []interface{}
}

func NewSearchLoader(db *kivik.DB, batchDocs int, quarantineDir string, log *wikilog.ContextLogger) *SearchLoader {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "loader.search"})
	}
	if batchDocs <= 0 {
		batchDocs = 500
	}
	return &SearchLoader{
		db:            db,
		batchDocs:     batchDocs,
		quarantineDir: quarantineDir,
		backoff:       500 * time.Millisecond,
		log:           log,
	}
}

// Run consumes documents from in until producers end-of-stream sentinels
// have all been observed, flushing the remainder before returning.
func (l *SearchLoader) Run(ctx context.Context, in <-chan *wiki.SearchDocument, producers int) error {
	l.state = newBatchState(producers)

	for {
		select {
		case <-ctx.Done():
			l.flush(context.Background())
			return ctx.Err()
		case doc, ok := <-in:
			if !ok {
				return nil
			}
			if doc == nil {
				if l.state.sentinel() {
					l.flush(ctx)
					return nil
				}
				continue
			}
			l.batch = append(l.batch, doc)
			if l.state.add(l.batchDocs) {
				l.flush(ctx)
			}
		}
	}
}

func (l *SearchLoader) flush(ctx context.Context) {
	l.state.beginFlush()
	defer l.state.endFlush()

	if len(l.batch) == 0 {
		return
	}
	docs := l.batch
	l.batch = nil

	err := l.bulkDocs(ctx, docs)
	if err != nil {
		l.log.WithError(err).Warn((&wikierr.LoadError{Target: "search-index", Attempt: 1, Err: err}).Error())
		time.Sleep(l.backoff)
		err = l.bulkDocs(ctx, docs)
	}
	if err != nil {
		loadErr := &wikierr.LoadError{Target: "search-index", Attempt: 2, Err: err}
		l.log.WithError(loadErr).Error(loadErr.Error())
		if qerr := quarantineDocs(l.quarantineDir, docs); qerr != nil {
			l.log.WithError(qerr).Error("failed to quarantine batch after search load failure")
		}
	}
}

func (l *SearchLoader) bulkDocs(ctx context.Context, docs []interface{}) error {
	if l.db == nil {
		return errNoSearchConnection
	}
	results, err := l.db.BulkDocs(ctx, docs)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

// quarantineDocs writes a rejected batch to a newline-delimited JSON file so
// an operator can inspect and replay it later, per §4.6's quarantine path.
func quarantineDocs(dir string, docs []interface{}) error {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("search-%d.quarantine.jsonl", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}
