package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ppls/internal/config"
	"ppls/internal/corpus"
	"ppls/internal/extract"
	"ppls/internal/fetch"
	"ppls/internal/input"
	"ppls/internal/logger"
	"ppls/internal/lookup"
	"ppls/internal/pipeline"
	"ppls/internal/quality"
	"ppls/internal/ratelimit"
	"ppls/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "crawl":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		inPath := fs.String("input", cfg.InputPath, "registration list (csv or xlsx)")
		outPath := fs.String("output", cfg.OutputPath, "corpus json path")
		limit := fs.Int("limit", cfg.RowLimit, "max rows to process (0 = all)")
		workers := fs.Int("workers", cfg.CrawlWorkers, "concurrent items")
		_ = fs.Parse(os.Args[2:])
		cfg.InputPath = *inPath
		cfg.OutputPath = *outPath
		cfg.RowLimit = *limit
		cfg.CrawlWorkers = *workers
		runCrawl(cfg)
	case "resolve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		identifier := strings.TrimSpace(fs.Arg(0))
		if identifier == "" {
			must(fmt.Errorf("usage: ppls resolve <registration-number>"))
		}
		runResolve(cfg, identifier)
	case "check":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		path := strings.TrimSpace(fs.Arg(0))
		if path == "" {
			must(fmt.Errorf("usage: ppls check <document.pdf|document.html>"))
		}
		runCheck(cfg, path)
	case "report":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.Int64("run", 0, "run id (0 = last run)")
		_ = fs.Parse(os.Args[2:])
		runReport(cfg, *runID)
	default:
		usage()
		os.Exit(1)
	}
}

func runCrawl(cfg config.Config) {
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	rows, err := input.ReadRows(cfg.InputPath)
	must(err)
	log.Infof("loaded %d rows from %s", len(rows), cfg.InputPath)

	limiter := ratelimit.New(cfg.RateLimitRPS)
	crawler := pipeline.New(cfg, log,
		lookup.NewClient(cfg, limiter),
		fetch.New(cfg, limiter),
		quality.NewGate(cfg),
	)

	ledger, err := storage.Open(cfg.LedgerPath)
	var runID int64
	if err != nil {
		log.Warnf("ledger unavailable, continuing without it: %v", err)
		ledger = nil
	} else {
		defer ledger.Close()
		runID, err = ledger.InsertRun(traceID(), cfg.InputPath, cfg.OutputPath)
		if err != nil {
			log.Warnf("ledger run insert failed, continuing without it: %v", err)
			ledger = nil
		} else {
			crawler.SetLedger(ledger, runID)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res := crawler.Run(ctx, rows)

	must(corpus.Write(cfg.OutputPath, res.Records))
	if ledger != nil {
		if err := ledger.FinishRun(runID, res.Processed, res.Added, res.Skipped); err != nil {
			log.Warnf("ledger run finish failed: %v", err)
		}
	}

	fmt.Println("\n====================")
	fmt.Println("Crawl complete")
	fmt.Printf("Rows processed: %d\n", res.Processed)
	fmt.Printf("Rows added:     %d\n", res.Added)
	fmt.Printf("Rows skipped:   %d\n", res.Skipped)
	fmt.Printf("Elapsed:        %s\n", time.Since(start).Round(time.Second))
	fmt.Printf("Output:         %s\n", cfg.OutputPath)
	fmt.Println("====================")
}

func runResolve(cfg config.Config, identifier string) {
	limiter := ratelimit.New(cfg.RateLimitRPS)
	client := lookup.NewClient(cfg, limiter)

	locator, err := client.Resolve(context.Background(), identifier)
	must(err)
	if locator == "" {
		fmt.Printf("reg=%s locator=absent\n", identifier)
		return
	}
	fmt.Printf("reg=%s locator=%s\n", identifier, locator)
	fmt.Printf("url=%s\n", client.DownloadURL(locator))
}

func runCheck(cfg config.Config, path string) {
	data, err := os.ReadFile(path)
	must(err)

	format := extract.Detect(path)
	gate := quality.NewGate(cfg)
	verdict := gate.Check(data, func(b []byte) (string, error) {
		return extract.Sample(b, format, cfg.QualitySamplePages)
	})

	fmt.Printf("file=%s format=%s bytes=%d\n", path, format, len(data))
	if verdict.Detail != "" {
		fmt.Printf("verdict=%v reason=%s detail=%s\n", verdict.OK, verdict.Reason, verdict.Detail)
	} else {
		fmt.Printf("verdict=%v reason=%s\n", verdict.OK, verdict.Reason)
	}

	if verdict.OK {
		text := extract.Full(data, format)
		fmt.Printf("full_text_chars=%d\n", len([]rune(text)))
	}
}

func runReport(cfg config.Config, runID int64) {
	ledger, err := storage.Open(cfg.LedgerPath)
	must(err)
	defer ledger.Close()

	var run *storage.RunRow
	if runID > 0 {
		run, err = ledger.RunByID(runID)
	} else {
		run, err = ledger.LastRun()
	}
	must(err)
	if run == nil {
		fmt.Println("no runs recorded")
		return
	}

	finished := "running"
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	fmt.Printf("run=%d trace=%s started=%s finished=%s\n", run.ID, run.TraceID, run.StartedAt, finished)
	fmt.Printf("input=%s output=%s\n", run.InputPath, run.OutputPath)
	fmt.Printf("processed=%d added=%d skipped=%d\n", run.Processed, run.Added, run.Skipped)

	breakdown, err := ledger.SkipBreakdown(run.ID)
	must(err)
	if len(breakdown) > 0 {
		fmt.Println("skips:")
		for _, sc := range breakdown {
			fmt.Printf("  %-18s %-24s %d\n", sc.Kind, sc.Reason, sc.Count)
		}
	}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func usage() {
	fmt.Println(`ppls <command> [flags]

commands:
  crawl    run the label crawl: csv/xlsx in, corpus json out
  resolve  resolve one registration number to its document url
  check    run the quality gate against a local document
  report   show counts and skip breakdown for a recorded run`)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
