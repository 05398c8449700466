// Package pipeline drives each input row through resolve, fetch, quality
// gate, and extraction. Stage failures are final for the row and never abort
// the run.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ppls/internal"
	"ppls/internal/config"
	"ppls/internal/extract"
	"ppls/internal/fetch"
	"ppls/internal/lookup"
	"ppls/internal/quality"
	"ppls/internal/storage"
)

type Crawler struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	lookup  *lookup.Client
	fetcher *fetch.Fetcher
	gate    *quality.Gate

	ledger *storage.DB
	runID  int64
}

type Result struct {
	Records   []internal.OutputRecord
	Processed int
	Added     int
	Skipped   int
}

type itemResult struct {
	record  *internal.OutputRecord
	outcome internal.ItemOutcome
}

func New(cfg config.Config, log *zap.SugaredLogger, lk *lookup.Client, f *fetch.Fetcher, gate *quality.Gate) *Crawler {
	return &Crawler{cfg: cfg, log: log, lookup: lk, fetcher: f, gate: gate}
}

// SetLedger attaches an optional outcome ledger. The crawl runs the same
// without one.
func (c *Crawler) SetLedger(db *storage.DB, runID int64) {
	c.ledger = db
	c.runID = runID
}

// Run processes rows through a bounded worker pool. Records come back in
// input order regardless of completion order. Cancelling ctx stops new rows
// from being dispatched; rows already in flight still reach a terminal state
// and whatever accumulated stays in the result.
func (c *Crawler) Run(ctx context.Context, rows []internal.InputRecord) Result {
	if c.cfg.RowLimit > 0 && len(rows) > c.cfg.RowLimit {
		rows = rows[:c.cfg.RowLimit]
	}

	workers := c.cfg.CrawlWorkers
	if workers < 1 {
		workers = 1
	}

	type job struct {
		pos int
		row internal.InputRecord
	}

	jobs := make(chan job)
	results := make([]itemResult, len(rows))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.pos] = c.processItem(j.pos, j.row)
			}
		}()
	}

submit:
	for i, row := range rows {
		select {
		case <-ctx.Done():
			c.log.Warnf("cancelled, %d of %d rows dispatched", i, len(rows))
			break submit
		case jobs <- job{pos: i, row: row}:
		}
	}
	close(jobs)
	wg.Wait()

	res := Result{Records: make([]internal.OutputRecord, 0, len(rows))}
	for _, r := range results {
		if r.outcome.Status == "" {
			continue // never dispatched
		}
		res.Processed++
		if r.record != nil {
			res.Records = append(res.Records, *r.record)
			res.Added++
		} else {
			res.Skipped++
		}
	}
	return res
}

// processItem walks one row through the stage sequence. A stage only runs
// when every earlier stage succeeded; the first failure is terminal. In
// flight work is deliberately detached from run cancellation so an item
// always reaches a terminal state, bounded by the client timeouts.
func (c *Crawler) processItem(pos int, row internal.InputRecord) itemResult {
	ctx := context.Background()

	out := internal.ItemOutcome{
		Position:   pos + 1,
		Identifier: row.Identifier,
		Title:      row.DisplayName,
		Status:     internal.StatusSkipped,
	}

	c.log.Infof("[%d] reg=%s name=%.80s", out.Position, row.Identifier, row.DisplayName)

	if row.Identifier == "" {
		return c.skip(out, internal.SkipMissingInput, "missing registration number", "")
	}

	locator, err := c.lookup.Resolve(ctx, row.Identifier)
	if err != nil {
		return c.skip(out, internal.SkipLookupFailed, "lookup failed", err.Error())
	}
	if locator == "" {
		return c.skip(out, internal.SkipLookupFailed, "locator empty", "")
	}

	docURL := c.lookup.DownloadURL(locator)
	out.Link = docURL

	// Advisory size probe: saves the download for documents the byte bounds
	// would reject anyway. A failed probe never blocks the row.
	if size, ok := c.fetcher.Probe(ctx, docURL); ok {
		if v := c.gate.CheckSize(size); !v.OK {
			return c.skip(out, internal.SkipQuality, v.Reason, v.Detail)
		}
	}

	data, err := c.fetcher.Download(ctx, docURL)
	if err != nil {
		return c.skip(out, internal.SkipFetchFailed, "download failed", err.Error())
	}
	out.DocBytes = int64(len(data))

	format := extract.Detect(locator)
	verdict := c.gate.Check(data, func(b []byte) (string, error) {
		return extract.Sample(b, format, c.cfg.QualitySamplePages)
	})
	if !verdict.OK {
		return c.skip(out, internal.SkipQuality, verdict.Reason, verdict.Detail)
	}

	text := extract.Full(data, format)
	if text == "" {
		return c.skip(out, internal.SkipExtraction, "empty text after full extraction", "")
	}
	out.TextChars = len([]rune(text))

	title := row.DisplayName
	if title == "" {
		title = row.Identifier
	}
	out.Title = title
	out.Status = internal.StatusAdded

	record := internal.OutputRecord{
		Title:      title,
		Link:       docURL,
		Identifier: row.Identifier,
		State:      "NA",
		Content:    []internal.ContentBlock{{ContentText: text}},
	}

	c.log.Infof("[%d] added reg=%s bytes=%d chars=%d", out.Position, row.Identifier, out.DocBytes, out.TextChars)
	c.record(out)
	return itemResult{record: &record, outcome: out}
}

func (c *Crawler) skip(out internal.ItemOutcome, kind internal.SkipKind, reason, detail string) itemResult {
	out.SkipKind = kind
	out.Reason = reason
	out.Detail = detail
	if detail != "" {
		c.log.Warnf("[%d] skip reg=%s kind=%s reason=%s detail=%s", out.Position, out.Identifier, kind, reason, detail)
	} else {
		c.log.Warnf("[%d] skip reg=%s kind=%s reason=%s", out.Position, out.Identifier, kind, reason)
	}
	c.record(out)
	return itemResult{outcome: out}
}

func (c *Crawler) record(out internal.ItemOutcome) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.InsertItem(c.runID, out); err != nil {
		c.log.Warnf("ledger write failed: %v", err)
	}
}
