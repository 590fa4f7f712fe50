package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wikidat.dev/etlconfig"
	"wikidat.dev/identity"
	"wikidat.dev/langpattern"
	"wikidat.dev/loader"
	"wikidat.dev/orchestrator"
	"wikidat.dev/wiki"
	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// ingestCmd runs one language's dump set through the full pipeline to
// completion, then finalizes the identity partitions for that language.
var ingestCmd = &cobra.Command{
	Use:   "ingest [dump files...]",
	Short: "extract, transform, and load one or more dump files for a single language",
	Long: `ingest streams each given MediaWiki XML dump through the
extractor, the page/revision/log-item transformers, and the tabular and
search loaders, then writes the resolved contributor identities for the
language to the relational store.

All dump files passed to one invocation must belong to the same language and
dump kind; ingest does not mix languages within a run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("lang", "", "wiki language code, e.g. enwiki (required)")
	ingestCmd.Flags().String("dump-kind", "", "revision-history, stub-meta, or logging (default revision-history)")
	ingestCmd.Flags().Int("page-fan", 0, "page-transformer worker count")
	ingestCmd.Flags().Int("rev-fan", 0, "revision-transformer worker count")
	ingestCmd.Flags().Int("log-fan", 0, "log-item-transformer worker count")
	ingestCmd.Flags().Int("workers", 0, "number of dump files processed concurrently")
	ingestCmd.Flags().Int("batch-rows", 0, "tabular loader flush threshold")
	ingestCmd.Flags().Int("batch-docs", 0, "search loader flush threshold")
	ingestCmd.Flags().String("mysql-dsn", "", "MySQL DSN for the bulk tabular load target")
	ingestCmd.Flags().String("search-url", "", "search index base URL")
	ingestCmd.Flags().String("redis-url", "", "identity cache Redis URL")
	ingestCmd.Flags().String("quarantine-dir", "", "directory for batches that fail to load")

	viper.BindPFlag("lang", ingestCmd.Flags().Lookup("lang"))
	viper.BindPFlag("dump_kind", ingestCmd.Flags().Lookup("dump-kind"))
	viper.BindPFlag("page_fan", ingestCmd.Flags().Lookup("page-fan"))
	viper.BindPFlag("rev_fan", ingestCmd.Flags().Lookup("rev-fan"))
	viper.BindPFlag("log_fan", ingestCmd.Flags().Lookup("log-fan"))
	viper.BindPFlag("workers", ingestCmd.Flags().Lookup("workers"))
	viper.BindPFlag("batch_rows", ingestCmd.Flags().Lookup("batch-rows"))
	viper.BindPFlag("batch_docs", ingestCmd.Flags().Lookup("batch-docs"))
	viper.BindPFlag("mysql_dsn", ingestCmd.Flags().Lookup("mysql-dsn"))
	viper.BindPFlag("search_url", ingestCmd.Flags().Lookup("search-url"))
	viper.BindPFlag("redis_url", ingestCmd.Flags().Lookup("redis-url"))
	viper.BindPFlag("quarantine_dir", ingestCmd.Flags().Lookup("quarantine-dir"))
}

// resolveConfig starts from etlconfig.Load's environment-derived defaults
// and lets any flag or config-file value the operator actually set override
// it, so a bare `wikietl ingest --lang enwiki ...` still works off defaults.
func resolveConfig() etlconfig.Config {
	cfg := etlconfig.Load()

	if v := viper.GetString("lang"); v != "" {
		cfg.Lang = v
	}
	if v := viper.GetString("dump_kind"); v != "" {
		cfg.DumpKind = v
	}
	if v := viper.GetInt("page_fan"); v != 0 {
		cfg.PageFan = v
	}
	if v := viper.GetInt("rev_fan"); v != 0 {
		cfg.RevFan = v
	}
	if v := viper.GetInt("log_fan"); v != 0 {
		cfg.LogFan = v
	}
	if v := viper.GetInt("workers"); v != 0 {
		cfg.Workers = v
	}
	if v := viper.GetInt("batch_rows"); v != 0 {
		cfg.BatchRows = v
	}
	if v := viper.GetInt("batch_docs"); v != 0 {
		cfg.BatchDocs = v
	}
	if v := viper.GetString("mysql_dsn"); v != "" {
		cfg.MySQLDSN = v
	}
	if v := viper.GetString("search_url"); v != "" {
		cfg.SearchURL = v
	}
	if v := viper.GetString("redis_url"); v != "" {
		cfg.RedisURL = v
	}
	if v := viper.GetString("quarantine_dir"); v != "" {
		cfg.QuarantineDir = v
	}
	return cfg
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := wikilog.NewContextLogger(
		wikilog.New(wikilog.Config{Level: wikilog.Level(cfg.LogLevel), Format: cfg.LogFormat}),
		map[string]interface{}{"component": "cli", "lang": cfg.Lang},
	)

	if err := os.MkdirAll(cfg.QuarantineDir, 0o755); err != nil {
		return fmt.Errorf("ingest: create quarantine dir: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("ingest: parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	identitySvc := identity.NewService(redisClient, log)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("ingest: open mysql: %w", err)
	}
	defer db.Close()

	kivikClient, err := kivik.New("couch", cfg.SearchURL)
	if err != nil {
		return fmt.Errorf("ingest: open search index: %w", err)
	}
	searchDB := kivikClient.DB(cfg.SearchIndexName())

	registry := langpattern.Default()
	if !registry.Supports(cfg.Lang) {
		return &wikierr.UnsupportedLanguageError{Lang: cfg.Lang}
	}

	o := orchestrator.New(
		orchestrator.Settings{
			PageFan:   cfg.PageFan,
			RevFan:    cfg.RevFan,
			LogFan:    cfg.LogFan,
			BatchRows: cfg.BatchRows,
			BatchDocs: cfg.BatchDocs,
		},
		orchestrator.Sinks{
			NewTabularLoader: func() *loader.TabularLoader {
				return loader.NewTabularLoader(db, cfg.BatchRows, cfg.QuarantineDir, log)
			},
			NewSearchLoader: func() *loader.SearchLoader {
				return loader.NewSearchLoader(searchDB, cfg.BatchDocs, cfg.QuarantineDir, log)
			},
		},
		identitySvc,
		registry,
		log,
	)

	driver := &orchestrator.Driver{Orchestrator: o, Workers: cfg.Workers}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn("received shutdown signal, draining in-flight batches")
		cancel()
	}()

	dumps := make(chan *wiki.Dump, len(args)+driver.Workers)
	for _, path := range args {
		dumps <- &wiki.Dump{Path: path, Lang: cfg.Lang, Kind: wiki.DumpKind(cfg.DumpKind)}
	}
	for i := 0; i < driver.Workers; i++ {
		dumps <- nil
	}
	close(dumps)

	if err := driver.Run(ctx, dumps); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	finalizerLoader := loader.NewTabularLoader(db, cfg.BatchRows, cfg.QuarantineDir, log)
	finalizer := identity.NewFinalizer(finalizerLoader, log)

	if err := finalizer.Finalize(ctx, identitySvc, cfg.Lang, cfg.BatchRows); err != nil {
		return fmt.Errorf("ingest: finalize identity partitions: %w", err)
	}

	log.Info("ingest complete")
	return nil
}
