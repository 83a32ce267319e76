// Command uvcalc computes cosine-corrected UV irradiance spectra for Brewer
// instrument days and hands them to the configured sinks.
//
// Usage:
//
//	uvcalc -mode files -uv UV12320.033 -ozone B12320.033 -uvr UVRES.033 -arf arf_033.dat
//	uvcalc -mode range -brewer 033 -start 2020-05-01 -end 2020-05-31 -dir /data/brewer
//	uvcalc -mode scan -dir /data/brewer
//
// Service settings come from the environment (see internal/config); the
// calculation settings from SETTINGS_FILE and UV_* variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	httpadapter "github.com/couchcryptid/uv-irradiance-etl/internal/adapter/http"
	"github.com/couchcryptid/uv-irradiance-etl/internal/adapter/cloudcover"
	"github.com/couchcryptid/uv-irradiance-etl/internal/adapter/eubrewnet"
	kafkaadapter "github.com/couchcryptid/uv-irradiance-etl/internal/adapter/kafka"
	parquetadapter "github.com/couchcryptid/uv-irradiance-etl/internal/adapter/parquet"
	"github.com/couchcryptid/uv-irradiance-etl/internal/calc"
	"github.com/couchcryptid/uv-irradiance-etl/internal/catalog"
	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
	"github.com/couchcryptid/uv-irradiance-etl/internal/pipeline"
	"github.com/couchcryptid/uv-irradiance-etl/internal/solver"
)

type options struct {
	mode  string
	serve bool

	uv, ozone, uvr, arf, par string
	brewer, date             string
	start, end, dir          string
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "files", "selection mode: files, range or scan")
	flag.BoolVar(&opts.serve, "serve", false, "keep the ops server running after the batch until interrupted")
	flag.StringVar(&opts.uv, "uv", "", "UV measurement file (files mode)")
	flag.StringVar(&opts.ozone, "ozone", "", "B ozone file (files mode)")
	flag.StringVar(&opts.uvr, "uvr", "", "UVR calibration file (files mode)")
	flag.StringVar(&opts.arf, "arf", "", "angular response file (files mode)")
	flag.StringVar(&opts.par, "par", "", "parameter file (files mode, optional)")
	flag.StringVar(&opts.brewer, "brewer", "", "brewer id (range mode; overrides the UV file name in files mode)")
	flag.StringVar(&opts.date, "date", "", "measurement date YYYY-MM-DD (files mode, optional)")
	flag.StringVar(&opts.start, "start", "", "first day YYYY-MM-DD (range mode)")
	flag.StringVar(&opts.end, "end", "", "last day YYYY-MM-DD (range mode)")
	flag.StringVar(&opts.dir, "dir", "", "instrument file tree (scan mode; optional local files in range mode)")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("uvcalc failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	src := input.Sources{Settings: settings, Metrics: metrics, Logger: logger}
	// Remote providers are feature-flagged via EUBREWNET_ENABLED and
	// CLOUD_COVER_ENABLED / CLOUD_COVER_TOKEN.
	if cfg.EubrewnetEnabled {
		src.Network = eubrewnet.NewClient(cfg, metrics, logger)
		logger.Info("eubrewnet enabled", "url", cfg.EubrewnetURL, "rps", cfg.EubrewnetRPS)
	} else {
		logger.Info("eubrewnet disabled")
	}
	if cfg.CloudCoverEnabled {
		client := cloudcover.NewClient(cfg.CloudCoverURL, cfg.CloudCoverToken, cfg.CloudCoverTimeout, metrics, logger)
		src.Cloud = cloudcover.NewCachedProvider(client, cfg.CloudCoverCacheSize, metrics)
		logger.Info("cloud cover service enabled", "cache_size", cfg.CloudCoverCacheSize, "timeout", cfg.CloudCoverTimeout)
	} else {
		logger.Info("cloud cover service disabled")
	}

	var sinks []pipeline.NamedSink
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewResultWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, pipeline.NamedSink{Name: kafkaadapter.SinkName, Sink: writer})
	}
	if cfg.OutputDir != "" {
		sinks = append(sinks, pipeline.NamedSink{Name: parquetadapter.SinkName, Sink: parquetadapter.NewSink(cfg.OutputDir, logger)})
	}
	if len(sinks) == 0 {
		logger.Warn("no result sink configured, results are only summarized")
	}

	calculator := calc.NewCalculator(solver.NewExec(cfg, metrics, logger), nil, logger)
	p := pipeline.New(
		pipeline.NewScheduler(calculator, cfg.Workers, metrics, logger),
		pipeline.NewOutputStage(sinks, cfg.OutputWorkers, metrics, logger),
		logger, metrics,
	)
	factory := pipeline.NewFactory(src, cfg.Workers, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		logger.Info("shutdown complete")
	}()

	batch, err := buildBatch(ctx, factory, opts)
	if err != nil {
		return err
	}
	report := p.Process(ctx, batch)
	printReport(os.Stdout, report)

	if opts.serve {
		logger.Info("batch done, serving ops endpoints until interrupted")
		<-ctx.Done()
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d sections failed", report.Failed, report.Failed+report.Succeeded)
	}
	return nil
}

func buildBatch(ctx context.Context, f *pipeline.Factory, opts options) (pipeline.Batch, error) {
	switch opts.mode {
	case "files":
		sel := pipeline.FileSelection{
			BrewerID:        opts.brewer,
			UV:              opts.uv,
			Ozone:           opts.ozone,
			Calibration:     opts.uvr,
			AngularResponse: opts.arf,
			Parameters:      opts.par,
		}
		if opts.date != "" {
			d, err := time.Parse(time.DateOnly, opts.date)
			if err != nil {
				return pipeline.Batch{}, fmt.Errorf("invalid -date: %w", err)
			}
			sel.Date = d
		}
		return f.FromFiles(ctx, sel)
	case "range":
		start, err := time.Parse(time.DateOnly, opts.start)
		if err != nil {
			return pipeline.Batch{}, fmt.Errorf("invalid -start: %w", err)
		}
		end, err := time.Parse(time.DateOnly, opts.end)
		if err != nil {
			return pipeline.Batch{}, fmt.Errorf("invalid -end: %w", err)
		}
		sel := pipeline.RangeSelection{BrewerID: opts.brewer, Start: start, End: end}
		if opts.dir != "" {
			if sel.Catalog, err = catalog.Scan(opts.dir); err != nil {
				return pipeline.Batch{}, fmt.Errorf("scan %s: %w", opts.dir, err)
			}
		}
		return f.FromDateRange(ctx, sel)
	case "scan":
		if opts.dir == "" {
			return pipeline.Batch{}, errors.New("-dir is required in scan mode")
		}
		return f.FromDirectory(ctx, opts.dir)
	default:
		return pipeline.Batch{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
}

func printReport(w io.Writer, r pipeline.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BREWER\tDATE\tSECTION\tSTATUS\tCORRECTION\tOUTPUT")
	for _, s := range r.Sections {
		status, output := string(s.Stage), ""
		if s.Err != nil {
			output = s.Err.Error()
		} else if len(s.Artifacts) > 0 {
			output = s.Artifacts[0].Location
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", s.BrewerID, s.Date.Format(time.DateOnly), s.Section, status, s.Correction, output)
	}
	for _, d := range r.Days {
		if d.Skipped {
			fmt.Fprintf(tw, "%s\t%s\t-\tskipped (%s)\t\t%v\n", d.BrewerID, d.Date.Format(time.DateOnly), d.Reason, d.Err)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d days in %s\n", r.Succeeded, r.Failed, len(r.Days), r.Duration.Round(time.Millisecond))
}
