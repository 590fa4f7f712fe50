// Package orchestrator wires one dump file's extractor, transformers, and
// loaders together per SPEC_FULL.md §4.7: it owns the channel topology and
// the fan-out/fan-in cardinalities, and is the only component that sends
// end-of-stream sentinels on behalf of a finished group of workers.
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wikidat.dev/extract"
	"wikidat.dev/identity"
	"wikidat.dev/langpattern"
	"wikidat.dev/loader"
	"wikidat.dev/transform"
	"wikidat.dev/wiki"
	"wikidat.dev/wikilog"
)

// Settings holds the fan-out and batching knobs a dump run is configured
// with; it mirrors the relevant fields of etlconfig.Config without importing
// it, so this package stays usable from tests without a full config load.
type Settings struct {
	PageFan   int
	RevFan    int
	LogFan    int
	BatchRows int
	BatchDocs int
}

// Sinks bundles the two loader constructors a run needs. They are functions
// rather than already-built loaders because each dump gets its own loader
// instance with its own temp files and in-memory batch.
type Sinks struct {
	NewTabularLoader func() *loader.TabularLoader
	NewSearchLoader  func() *loader.SearchLoader
}

// Orchestrator runs each dump against a shared IdentityService and
// language-pattern registry, with per-dump loaders from Sinks. Driver may
// call RunDump for several dumps concurrently.
type Orchestrator struct {
	Settings Settings
	Sinks    Sinks
	Identity *identity.Service
	Registry *langpattern.Registry
	Log      *wikilog.ContextLogger
}

func New(settings Settings, sinks Sinks, svc *identity.Service, registry *langpattern.Registry, log *wikilog.ContextLogger) *Orchestrator {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "orchestrator"})
	}
	return &Orchestrator{Settings: settings, Sinks: sinks, Identity: svc, Registry: registry, Log: log}
}

// RunDump processes one dump file to completion: it instantiates the
// extractor and the declared number of transformer workers, wires channels
// between them and one loader per sink, and blocks until every worker
// (including the loaders) has finished.
func (o *Orchestrator) RunDump(ctx context.Context, d wiki.Dump) error {
	switch d.Kind {
	case wiki.DumpKindRevisionHistory, wiki.DumpKindStubMeta:
		return o.runRevisionDump(ctx, d)
	case wiki.DumpKindLogging:
		return o.runLoggingDump(ctx, d)
	default:
		return fmt.Errorf("orchestrator: unrecognized dump kind %q", d.Kind)
	}
}

func (o *Orchestrator) runRevisionDump(ctx context.Context, d wiki.Dump) error {
	log := o.Log.WithFields(map[string]interface{}{"path": d.Path, "lang": d.Lang})

	pages := make(chan *wiki.Page, o.Settings.PageFan*4)
	revisions := make(chan *wiki.Revision, o.Settings.RevFan*4)
	rows := make(chan *wiki.RelationalRow, o.Settings.PageFan+o.Settings.RevFan)
	docs := make(chan *wiki.SearchDocument, o.Settings.RevFan)

	tabular := o.Sinks.NewTabularLoader()
	search := o.Sinks.NewSearchLoader()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e := &extract.Extractor{
			Path: d.Path, Lang: d.Lang, Kind: d.Kind,
			PageFan: o.Settings.PageFan, RevFan: o.Settings.RevFan,
			Log: log,
		}
		return e.Run(gctx, extract.Channels{Pages: pages, Revisions: revisions})
	})

	transformGroup, tctx := errgroup.WithContext(gctx)
	for i := 0; i < o.Settings.PageFan; i++ {
		transformGroup.Go(func() error {
			var w transform.PageWorker
			return w.Run(tctx, pages, rows)
		})
	}
	for i := 0; i < o.Settings.RevFan; i++ {
		transformGroup.Go(func() error {
			w, err := transform.NewRevisionWorker(d.Lang, o.Registry, o.Identity, log)
			if err != nil {
				return err
			}
			return w.Run(tctx, revisions, rows, docs)
		})
	}

	g.Go(func() error {
		err := transformGroup.Wait()
		closeRelationalRows(gctx, rows, o.Settings.PageFan+o.Settings.RevFan)
		closeSearchDocs(gctx, docs, o.Settings.RevFan)
		return err
	})

	g.Go(func() error {
		return tabular.Run(gctx, rows, o.Settings.PageFan+o.Settings.RevFan)
	})
	g.Go(func() error {
		return search.Run(gctx, docs, o.Settings.RevFan)
	})

	return g.Wait()
}

func (o *Orchestrator) runLoggingDump(ctx context.Context, d wiki.Dump) error {
	log := o.Log.WithFields(map[string]interface{}{"path": d.Path, "lang": d.Lang})

	logItems := make(chan *wiki.LogItem, o.Settings.LogFan*4)
	rows := make(chan *wiki.RelationalRow, o.Settings.LogFan)

	tabular := o.Sinks.NewTabularLoader()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e := &extract.Extractor{
			Path: d.Path, Lang: d.Lang, Kind: d.Kind,
			LogFan: o.Settings.LogFan,
			Log:    log,
		}
		return e.Run(gctx, extract.Channels{LogItems: logItems})
	})

	transformGroup, tctx := errgroup.WithContext(gctx)
	for i := 0; i < o.Settings.LogFan; i++ {
		transformGroup.Go(func() error {
			w := transform.NewLogItemWorker(d.Lang, o.Identity, log)
			return w.Run(tctx, logItems, rows)
		})
	}

	g.Go(func() error {
		err := transformGroup.Wait()
		closeRelationalRows(gctx, rows, o.Settings.LogFan)
		return err
	})

	g.Go(func() error {
		return tabular.Run(gctx, rows, o.Settings.LogFan)
	})

	return g.Wait()
}

// closeRelationalRows and closeSearchDocs send one end-of-stream sentinel
// per upstream worker so the loader's producer count can retire them all.
// Sends bail out on context cancellation rather than blocking forever if
// the loader has already exited.
func closeRelationalRows(ctx context.Context, ch chan<- *wiki.RelationalRow, sentinels int) {
	for i := 0; i < sentinels; i++ {
		select {
		case ch <- nil:
		case <-ctx.Done():
			return
		}
	}
}

func closeSearchDocs(ctx context.Context, ch chan<- *wiki.SearchDocument, sentinels int) {
	for i := 0; i < sentinels; i++ {
		select {
		case ch <- nil:
		case <-ctx.Done():
			return
		}
	}
}
