package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"ppls/internal"
	"ppls/internal/config"
	"ppls/internal/fetch"
	"ppls/internal/lookup"
	"ppls/internal/quality"
	"ppls/internal/ratelimit"
	"ppls/internal/storage"
	"ppls/internal/testpdf"
)

const pageText = "Pesticide product label directions for use, storage and disposal. "

type upstream struct {
	lookups atomic.Int64
	// identifier -> lookup body; missing identifier answers 404
	payloads map[string]string
	// locator -> document bytes
	docs map[string][]byte
	// locator -> artificial delay, to shuffle completion order
	delays map[string]time.Duration
}

func (u *upstream) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ppls/"):
			u.lookups.Add(1)
			body, ok := u.payloads[strings.TrimPrefix(r.URL.Path, "/ppls/")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(body))
		case strings.HasPrefix(r.URL.Path, "/docs/"):
			locator := strings.TrimPrefix(r.URL.Path, "/docs/")
			doc, ok := u.docs[locator]
			if !ok {
				http.NotFound(w, r)
				return
			}
			if d := u.delays[locator]; d > 0 {
				time.Sleep(d)
			}
			_, _ = w.Write(doc)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCrawler(baseURL string, workers, rowLimit int) *Crawler {
	cfg := config.Config{
		LookupBaseURL:      baseURL + "/ppls",
		DocBaseURL:         baseURL + "/docs",
		UserAgent:          "ExtensionBot",
		RequestTimeoutMs:   5000,
		DownloadTimeoutMs:  5000,
		RateLimitRPS:       1000,
		CrawlWorkers:       workers,
		RowLimit:           rowLimit,
		MinDocBytes:        20_000,
		MaxDocBytes:        40_000_000,
		QualitySamplePages: 2,
		MinExtractedChars:  400,
		MinAlphaRatio:      0.35,
	}
	limiter := ratelimit.New(cfg.RateLimitRPS)
	return New(cfg, zap.NewNop().Sugar(), lookup.NewClient(cfg, limiter), fetch.New(cfg, limiter), quality.NewGate(cfg))
}

func goodPDF() []byte {
	page := strings.Repeat(pageText, 8)
	return testpdf.Build(500_000, page, page)
}

func TestCrawlScenarios(t *testing.T) {
	up := &upstream{
		payloads: map[string]string{
			"12345-67": `{"items":[{"pdffiles":[{"pdffile":"doc1.pdf"}]}]}`,
			"55-5":     `{"items":[{"pdffile":"small.pdf"}]}`,
			"66-6":     `{"pdffile":"scan.pdf"}`,
			"77-7":     `{"items":[{"notes":"no files here"}]}`,
		},
		docs: map[string][]byte{
			"doc1.pdf":  goodPDF(),
			"small.pdf": bytes.Repeat([]byte("x"), 15_000),
			"scan.pdf":  testpdf.BuildScanned(500_000),
		},
	}
	srv := up.serve(t)

	ledger, err := storage.Open(filepath.Join(t.TempDir(), "crawl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	runID, err := ledger.InsertRun("test", "in.csv", "out.json")
	if err != nil {
		t.Fatal(err)
	}

	c := testCrawler(srv.URL, 4, 0)
	c.SetLedger(ledger, runID)

	rows := []internal.InputRecord{
		{Identifier: "12345-67", DisplayName: "Weed Killer Plus"}, // added
		{Identifier: "404-1"},                                     // lookup 404
		{Identifier: "55-5"},                                      // too small
		{Identifier: "66-6"},                                      // scanned, no text
		{Identifier: "77-7"},                                      // locator absent
		{Identifier: ""},                                          // missing identifier
	}
	res := c.Run(context.Background(), rows)

	if res.Processed != 6 || res.Added != 1 || res.Skipped != 5 {
		t.Fatalf("counts processed=%d added=%d skipped=%d", res.Processed, res.Added, res.Skipped)
	}
	if res.Added+res.Skipped != res.Processed {
		t.Fatal("count invariant broken")
	}
	if len(res.Records) != 1 {
		t.Fatalf("records=%d", len(res.Records))
	}

	rec := res.Records[0]
	if rec.Title != "Weed Killer Plus" || rec.Identifier != "12345-67" || rec.State != "NA" {
		t.Fatalf("record=%+v", rec)
	}
	if !strings.HasSuffix(rec.Link, "doc1.pdf") {
		t.Fatalf("link=%q", rec.Link)
	}
	if len(rec.Content) != 1 || !strings.Contains(rec.Content[0].ContentText, "directions for use") {
		t.Fatalf("content=%+v", rec.Content)
	}

	items, err := ledger.ItemsByRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 6 {
		t.Fatalf("ledger items=%d", len(items))
	}

	byID := map[string]internal.ItemOutcome{}
	for _, it := range items {
		byID[it.Identifier+"@"+string(it.SkipKind)] = it
	}
	if it, ok := byID["55-5@"+string(internal.SkipQuality)]; !ok || it.Reason != quality.ReasonTooSmall {
		t.Fatalf("small item=%+v", it)
	}
	if it, ok := byID["66-6@"+string(internal.SkipQuality)]; !ok ||
		(it.Reason != quality.ReasonNoText && it.Reason != quality.ReasonLowChars) {
		t.Fatalf("scanned item=%+v", it)
	}
	if _, ok := byID["404-1@"+string(internal.SkipLookupFailed)]; !ok {
		t.Fatal("lookup failure not recorded")
	}
	if _, ok := byID["77-7@"+string(internal.SkipLookupFailed)]; !ok {
		t.Fatal("absent locator not recorded")
	}
	if _, ok := byID["@"+string(internal.SkipMissingInput)]; !ok {
		t.Fatal("missing identifier not recorded")
	}
}

func TestRowCap(t *testing.T) {
	up := &upstream{payloads: map[string]string{}, docs: map[string][]byte{}}
	srv := up.serve(t)

	rows := make([]internal.InputRecord, 10)
	for i := range rows {
		rows[i] = internal.InputRecord{Identifier: "404-1"}
	}

	c := testCrawler(srv.URL, 2, 2)
	res := c.Run(context.Background(), rows)

	if res.Processed != 2 {
		t.Fatalf("processed=%d", res.Processed)
	}
	if got := up.lookups.Load(); got != 2 {
		t.Fatalf("lookups=%d, rows past the cap were touched", got)
	}
}

func TestOutputOrderMatchesInput(t *testing.T) {
	page := strings.Repeat(pageText, 8)
	up := &upstream{
		payloads: map[string]string{},
		docs:     map[string][]byte{},
		delays:   map[string]time.Duration{},
	}
	ids := []string{"1-1", "2-2", "3-3", "4-4", "5-5", "6-6"}
	for i, id := range ids {
		locator := "doc" + id + ".pdf"
		up.payloads[id] = `{"pdffile":"` + locator + `"}`
		up.docs[locator] = testpdf.Build(25_000, page, page)
		if i%2 == 0 {
			up.delays[locator] = 40 * time.Millisecond
		}
	}
	srv := up.serve(t)

	rows := make([]internal.InputRecord, len(ids))
	for i, id := range ids {
		rows[i] = internal.InputRecord{Identifier: id}
	}

	c := testCrawler(srv.URL, 4, 0)
	res := c.Run(context.Background(), rows)

	if res.Added != len(ids) {
		t.Fatalf("added=%d skipped=%d", res.Added, res.Skipped)
	}
	for i, rec := range res.Records {
		if rec.Identifier != ids[i] {
			t.Fatalf("position %d has %s, want %s", i, rec.Identifier, ids[i])
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	up := &upstream{
		payloads: map[string]string{
			"12345-67": `{"items":[{"pdffiles":[{"pdffile":"doc1.pdf"}]}]}`,
		},
		docs: map[string][]byte{"doc1.pdf": goodPDF()},
	}
	srv := up.serve(t)

	rows := []internal.InputRecord{
		{Identifier: "12345-67", DisplayName: "Weed Killer Plus"},
		{Identifier: "404-1"},
	}

	first := testCrawler(srv.URL, 3, 0).Run(context.Background(), rows)
	second := testCrawler(srv.URL, 3, 0).Run(context.Background(), rows)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("same input and remote state produced different results")
	}
}

func TestCancelledRunStopsDispatch(t *testing.T) {
	up := &upstream{payloads: map[string]string{}, docs: map[string][]byte{}}
	srv := up.serve(t)

	rows := make([]internal.InputRecord, 5)
	for i := range rows {
		rows[i] = internal.InputRecord{Identifier: "404-1"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testCrawler(srv.URL, 2, 0)
	res := c.Run(ctx, rows)

	// Workers may have drained a row or two that were already queued, but
	// past the cancellation nothing more is dispatched and the counts stay
	// consistent.
	if res.Added+res.Skipped != res.Processed {
		t.Fatal("count invariant broken")
	}
	if res.Processed > len(rows) {
		t.Fatalf("processed=%d", res.Processed)
	}
}
