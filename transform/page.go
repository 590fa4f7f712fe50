package transform

import (
	"context"
	"strconv"

	"wikidat.dev/wiki"
)

// PageWorker turns Page records into page-table rows. It is stateless and
// makes no network calls, per the page transformer's contract.
type PageWorker struct{}

// Run reads from in until it receives the end-of-stream sentinel (a nil
// pointer) and returns. It never emits a sentinel of its own; the
// orchestrator is responsible for counting worker completions and closing
// downstream channels.
func (PageWorker) Run(ctx context.Context, in <-chan *wiki.Page, out chan<- *wiki.RelationalRow) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case page, ok := <-in:
			if !ok || page == nil {
				return nil
			}
			row := transformPage(page)
			select {
			case out <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func transformPage(p *wiki.Page) *wiki.RelationalRow {
	line := tabRow(
		strconv.FormatInt(p.PageID, 10),
		strconv.Itoa(p.Namespace),
		escapeField(p.Title),
		escapeField(p.RedirectTo),
		escapeField(p.Restrictions),
	)
	return &wiki.RelationalRow{Table: "page", Line: line}
}
