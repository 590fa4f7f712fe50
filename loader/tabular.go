package loader

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// tableBuffer is the temp file backing one table's in-flight batch. A fresh
// file is opened on the first row after each flush; per §5 "temp files are
// scoped to the loader and removed after a successful flush."
type tableBuffer struct {
	file *os.File
	path string
	rows int
}

// TabularLoader accumulates RelationalRow values per table and bulk-loads
// each table's batch via LOAD DATA INFILE once batchRows rows have
// accumulated, or on end-of-stream.
type TabularLoader struct {
	db            *sql.DB
	batchRows     int
	quarantineDir string
	backoff       time.Duration
	log           *wikilog.ContextLogger

	state   *batchState
	buffers map[string]*tableBuffer
}

func NewTabularLoader(db *sql.DB, batchRows int, quarantineDir string, log *wikilog.ContextLogger) *TabularLoader {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "loader.tabular"})
	}
	if batchRows <= 0 {
		batchRows = 1000
	}
	return &TabularLoader{
		db:            db,
		batchRows:     batchRows,
		quarantineDir: quarantineDir,
		backoff:       500 * time.Millisecond,
		log:           log,
		state:         newBatchState(0),
		buffers:       make(map[string]*tableBuffer),
	}
}

// Run consumes rows from in until producers end-of-stream sentinels (nil
// values) have all been observed, then flushes every table's remainder and
// returns. A context cancellation flushes whatever is buffered and returns
// the cancellation error.
func (l *TabularLoader) Run(ctx context.Context, in <-chan *wiki.RelationalRow, producers int) error {
	l.state = newBatchState(producers)
	defer l.closeBuffers()

	for {
		select {
		case <-ctx.Done():
			l.flushAll(context.Background())
			return ctx.Err()
		case row, ok := <-in:
			if !ok {
				return nil
			}
			if row == nil {
				if l.state.sentinel() {
					l.flushAll(ctx)
					return nil
				}
				continue
			}
			if err := l.append(ctx, row); err != nil {
				return err
			}
		}
	}
}

func (l *TabularLoader) append(ctx context.Context, row *wiki.RelationalRow) error {
	buf, err := l.bufferFor(row.Table)
	if err != nil {
		return err
	}
	if _, err := buf.file.WriteString(row.Line); err != nil {
		return fmt.Errorf("loader: write to %s batch file: %w", row.Table, err)
	}
	buf.rows++
	if buf.rows >= l.batchRows {
		return l.flushTable(ctx, row.Table, buf)
	}
	return nil
}

// LoadTable writes lines (already tab-separated, newline-terminated, per
// wiki.RelationalRow) to table's batch file and flushes immediately,
// reusing the same bulk-load/retry/quarantine path as streamed rows. Callers
// outside the Run loop (the identity finalizer's one-time partition writes)
// use this instead of going through a separate connection or ORM.
func (l *TabularLoader) LoadTable(ctx context.Context, table string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	buf, err := l.bufferFor(table)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := buf.file.WriteString(line); err != nil {
			return fmt.Errorf("loader: write to %s batch file: %w", table, err)
		}
		buf.rows++
	}
	return l.flushTable(ctx, table, buf)
}

func (l *TabularLoader) bufferFor(table string) (*tableBuffer, error) {
	if buf, ok := l.buffers[table]; ok {
		return buf, nil
	}
	f, err := os.CreateTemp("", fmt.Sprintf("wikietl-%s-*.tsv", table))
	if err != nil {
		return nil, fmt.Errorf("loader: create temp file for %s: %w", table, err)
	}
	buf := &tableBuffer{file: f, path: f.Name()}
	l.buffers[table] = buf
	return buf, nil
}

// flushTable issues the bulk load for one table's buffered rows. Failure is
// retried once with a fixed backoff; a second failure quarantines the file
// rather than aborting the dump (§4.6, §7 LoadError).
func (l *TabularLoader) flushTable(ctx context.Context, table string, buf *tableBuffer) error {
	l.state.beginFlush()
	defer l.state.endFlush()
	defer delete(l.buffers, table)

	if buf.rows == 0 {
		buf.file.Close()
		os.Remove(buf.path)
		return nil
	}
	if err := buf.file.Sync(); err != nil {
		return fmt.Errorf("loader: sync %s batch file: %w", table, err)
	}
	if err := buf.file.Close(); err != nil {
		return fmt.Errorf("loader: close %s batch file: %w", table, err)
	}

	err := l.loadInfile(ctx, table, buf.path)
	if err != nil {
		l.log.WithError(err).Warn((&wikierr.LoadError{Target: table, Attempt: 1, Err: err}).Error())
		time.Sleep(l.backoff)
		err = l.loadInfile(ctx, table, buf.path)
	}
	if err != nil {
		loadErr := &wikierr.LoadError{Target: table, Attempt: 2, Err: err}
		l.log.WithError(loadErr).Error(loadErr.Error())
		if qerr := l.quarantine(table, buf.path); qerr != nil {
			l.log.WithError(qerr).Error("failed to quarantine batch after load failure")
		}
		return nil
	}

	os.Remove(buf.path)
	return nil
}

func (l *TabularLoader) loadInfile(ctx context.Context, table, path string) error {
	if l.db == nil {
		return fmt.Errorf("loader: no database connection configured")
	}
	stmt := fmt.Sprintf(
		`LOAD DATA LOCAL INFILE '%s' INTO TABLE %s FIELDS TERMINATED BY '\t' OPTIONALLY ENCLOSED BY '"' ESCAPED BY '"' LINES TERMINATED BY '\n'`,
		path, table,
	)
	_, err := l.db.ExecContext(ctx, stmt)
	return err
}

func (l *TabularLoader) quarantine(table, path string) error {
	dir := l.quarantineDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(dir, fmt.Sprintf("%s-%d.quarantine.tsv", table, time.Now().UnixNano()))
	if err := os.Rename(path, dest); err == nil {
		return nil
	}
	return copyThenRemove(path, dest)
}

func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func (l *TabularLoader) flushAll(ctx context.Context) {
	for table, buf := range l.buffers {
		if err := l.flushTable(ctx, table, buf); err != nil {
			l.log.WithError(err).Error("failed to flush remaining batch on end-of-stream")
		}
	}
}

func (l *TabularLoader) closeBuffers() {
	for _, buf := range l.buffers {
		buf.file.Close()
		os.Remove(buf.path)
	}
}
