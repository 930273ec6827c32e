package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/produce"
	"github.com/marketpulse/scrape-cli/internal/report"
	"github.com/marketpulse/scrape-cli/internal/sink"
	"github.com/marketpulse/scrape-cli/internal/source"
	"github.com/marketpulse/scrape-cli/internal/store"
)

// scrapeFlags are the flags shared by the news, indicators and stocks
// commands. Zero / negative sentinels mean "use the config value".
type scrapeFlags struct {
	pages      int
	delay      float64
	batchPages int
	dest       string
	out        string
	mongoURI   string
	pgURL      string
	eager      bool
	noCache    bool
}

func addScrapeFlags(cmd *cobra.Command, f *scrapeFlags) {
	cmd.Flags().IntVar(&f.pages, "pages", 0, "max pages to scrape (default from config)")
	cmd.Flags().Float64Var(&f.delay, "delay", -1, "seconds between page fetches (default from config)")
	cmd.Flags().IntVar(&f.batchPages, "batch-pages", 0, "pages per write batch (default from config)")
	cmd.Flags().StringVar(&f.dest, "dest", "json", "destination: json, csv, xlsx, mongo or postgres")
	cmd.Flags().StringVar(&f.out, "out", "", "output file path for file destinations")
	cmd.Flags().StringVar(&f.mongoURI, "mongo-uri", "", "MongoDB URI (default from config)")
	cmd.Flags().StringVar(&f.pgURL, "pg-url", "", "PostgreSQL connection string (default from config)")
	cmd.Flags().BoolVar(&f.eager, "eager", false, "collect all records in memory before writing")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "bypass the local page cache")
}

// scrapeConfig merges flag overrides into the configured scrape settings.
func (f *scrapeFlags) scrapeConfig() config.ScrapeConfig {
	sc := cfg.Scrape
	if f.pages > 0 {
		sc.Pages = f.pages
	}
	if f.delay >= 0 {
		sc.DelaySecs = f.delay
	}
	if f.batchPages > 0 {
		sc.BatchPages = f.batchPages
	}
	return sc
}

func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func newSink(ctx context.Context, sourceName string, f *scrapeFlags) (sink.Sink, error) {
	out := f.out
	if out == "" {
		out = sourceName + "." + f.dest
	}

	switch f.dest {
	case "json":
		return sink.NewJSONFile(out)
	case "csv":
		return sink.NewCSVFile(out)
	case "xlsx":
		return sink.NewXLSXFile(out)
	case "mongo":
		uri := f.mongoURI
		if uri == "" {
			uri = cfg.Mongo.URI
		}
		return sink.NewMongo(ctx, uri, cfg.Mongo.Database, cfg.Mongo.Collection)
	case "postgres":
		url := f.pgURL
		if url == "" {
			url = cfg.Postgres.URL
		}
		return sink.NewPostgres(ctx, url, cfg.Postgres.Table, sourceName)
	default:
		return nil, eris.Errorf("unknown destination %q", f.dest)
	}
}

// runScrape wires one source through the producer into a sink, records the
// run in the local store and prints a summary table.
func runScrape(cmd *cobra.Command, sourceName string, f *scrapeFlags, build func(*source.Client, config.ScrapeConfig) source.Source) error {
	// cobra only sets a command context during Execute.
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc := f.scrapeConfig()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	var opts []source.Option
	if !f.noCache {
		opts = append(opts, source.WithCache(st, sc.CacheTTL()))
	}
	client := source.NewClient(sc, opts...)
	src := build(client, sc)

	snk, err := newSink(ctx, sourceName, f)
	if err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, sourceName)
	if err != nil {
		if cerr := snk.Close(ctx); cerr != nil {
			zap.L().Warn("sink close failed", zap.Error(cerr))
		}
		return err
	}
	zap.L().Info("run started",
		zap.String("run_id", run.ID),
		zap.String("source", sourceName),
		zap.String("destination", snk.Name()),
		zap.Int("pages", sc.Pages),
	)

	producer := produce.New(src, produce.Config{
		Pages:      sc.Pages,
		Delay:      sc.Delay(),
		BatchPages: sc.BatchPages,
	})

	start := time.Now()
	var result sink.Result
	var runErr error
	if f.eager {
		var records []model.Record
		records, runErr = producer.Collect(ctx)
		if len(records) > 0 {
			res, werr := snk.WriteBatch(ctx, records)
			result = res
			if runErr == nil {
				runErr = werr
			}
		}
	} else {
		result, runErr = sink.Stream(ctx, producer.Batches(ctx), snk)
	}
	if err := snk.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}

	stats := producer.Stats()
	summary := &model.Summary{
		PagesAttempted: stats.PagesAttempted,
		PagesSucceeded: stats.PagesSucceeded,
		PagesFailed:    stats.PagesFailed,
		PagesEmpty:     stats.PagesEmpty,
		Records:        stats.Records,
		Inserted:       result.Inserted,
		Updated:        result.Updated,
		Failed:         result.Failed,
		Destination:    snk.Name(),
		Elapsed:        time.Since(start),
	}

	status := model.RunCompleted
	if runErr != nil {
		status = model.RunFailed
	}
	if err := st.CompleteRun(ctx, run.ID, status, summary); err != nil {
		zap.L().Warn("failed to record run completion", zap.Error(err))
	}

	report.WriteSummary(os.Stdout, sourceName, *summary)

	if runErr != nil {
		return eris.Wrapf(runErr, "scrape %s", sourceName)
	}
	return nil
}
