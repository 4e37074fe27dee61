package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bilgehanertan/bibtex2dblp/internal/bibtex"
	"github.com/bilgehanertan/bibtex2dblp/internal/checkpoint"
	"github.com/bilgehanertan/bibtex2dblp/internal/dblp"
	"github.com/bilgehanertan/bibtex2dblp/internal/match"
)

// fakeLookup returns canned candidates per title and counts calls.
type fakeLookup struct {
	candidates map[string][]dblp.Candidate
	err        error
	calls      int
}

func (f *fakeLookup) Lookup(ctx context.Context, title string, authors []string) ([]dblp.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates[title], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEntry(key, title, authors string) bibtex.Entry {
	return bibtex.Entry{
		Key:  key,
		Type: "misc",
		Fields: []bibtex.Field{
			{Name: "title", Value: title},
			{Name: "author", Value: authors},
		},
	}
}

func newTestPipeline(t *testing.T, lookup Lookup, opts ...Option) (*Pipeline, string, string) {
	t.Helper()
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.bib")
	logPath := filepath.Join(dir, "log.csv")

	store, err := checkpoint.Open(logPath)
	if err != nil {
		t.Fatalf("checkpoint.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(lookup, match.New(), store, outPath, opts...), outPath, logPath
}

func TestRun_MatchedEntryRewritten(t *testing.T) {
	lookup := &fakeLookup{candidates: map[string][]dblp.Candidate{
		"A Study of Graph Algorithms": {{
			Key:     "conf/icml/SmithL20",
			Title:   "A Study of Graph Algorithms.",
			Authors: []string{"John Smith", "Anna Lee"},
			Venue:   "ICML",
			Year:    "2020",
			Type:    "Conference and Workshop Papers",
			EE:      "https://doi.org/10.1109/x",
		}},
	}}

	p, outPath, _ := newTestPipeline(t, lookup)
	entry := testEntry("smith2020graph", "A Study of Graph Algorithms", "John Smith and Anna Lee")

	summary, err := p.Run(context.Background(), []bibtex.Entry{entry})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Matched != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v, want 1 matched", summary)
	}

	out, _, err := bibtex.ParseFile(outPath)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("output has %d entries, want 1", len(out))
	}
	got := out[0]
	if got.Key != "smith2020graph" {
		t.Errorf("output key = %q, original citation key must be kept", got.Key)
	}
	if got.Type != "inproceedings" {
		t.Errorf("output type = %q, want inproceedings", got.Type)
	}
	if got.Get("dblp_key") != "conf/icml/SmithL20" {
		t.Errorf("dblp_key = %q", got.Get("dblp_key"))
	}
	if got.Get("booktitle") != "ICML" || got.Get("journal") != "" {
		t.Errorf("venue mapping: booktitle=%q journal=%q", got.Get("booktitle"), got.Get("journal"))
	}
	if got.Get("author") != "John Smith and Anna Lee" {
		t.Errorf("author = %q", got.Get("author"))
	}
}

func TestRun_UnmatchedEntryPreserved(t *testing.T) {
	// Candidate titles are unrelated, so nothing survives the thresholds.
	lookup := &fakeLookup{candidates: map[string][]dblp.Candidate{
		"An Obscure Technical Report": {{
			Key:   "journals/x/Other21",
			Title: "Completely Different Topic Entirely",
		}},
	}}

	p, outPath, logPath := newTestPipeline(t, lookup)
	entry := testEntry("obscure2019", "An Obscure Technical Report", "Sole Author")

	summary, err := p.Run(context.Background(), []bibtex.Entry{entry})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Unmatched != 1 || summary.Matched != 0 {
		t.Errorf("summary = %+v, want 1 unmatched", summary)
	}

	out, _, err := bibtex.ParseFile(outPath)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("output has %d entries, want 1 (unmatched entries are kept)", len(out))
	}
	if out[0].Get("dblp_key") != "" {
		t.Error("unmatched entry should not carry a dblp_key")
	}
	if out[0].Get("title") != "An Obscure Technical Report" {
		t.Errorf("unmatched title rewritten to %q", out[0].Get("title"))
	}

	store, err := checkpoint.Open(logPath)
	if err != nil {
		t.Fatalf("reopening log: %v", err)
	}
	defer store.Close()
	if !store.IsProcessed("obscure2019") {
		t.Error("unmatched entry missing from the log")
	}
}

func TestRun_ResumeSkipsProcessed(t *testing.T) {
	entries := []bibtex.Entry{
		testEntry("a2020", "First Paper Title", "Alice Author"),
		testEntry("b2021", "Second Paper Title", "Bob Author"),
	}

	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.bib")
	logPath := filepath.Join(dir, "log.csv")

	runOnce := func() (Summary, int) {
		store, err := checkpoint.Open(logPath)
		if err != nil {
			t.Fatalf("checkpoint.Open() error = %v", err)
		}
		defer store.Close()

		lookup := &fakeLookup{}
		p := New(lookup, match.New(), store, outPath, WithLogger(quietLogger()))
		summary, err := p.Run(context.Background(), entries)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return summary, lookup.calls
	}

	first, firstCalls := runOnce()
	if first.Processed != 2 || firstCalls != 2 {
		t.Fatalf("first run: summary %+v, %d lookups", first, firstCalls)
	}

	second, secondCalls := runOnce()
	if second.Skipped != 2 || second.Processed != 0 {
		t.Errorf("second run: summary %+v, want everything skipped", second)
	}
	if secondCalls != 0 {
		t.Errorf("second run performed %d lookups, want 0", secondCalls)
	}

	out, _, err := bibtex.ParseFile(outPath)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("output has %d entries after rerun, want 2 (no duplicates)", len(out))
	}
}

func TestRun_ResumeAfterPartialCommitNoDuplicates(t *testing.T) {
	entries := []bibtex.Entry{testEntry("a2020", "First Paper Title", "Alice Author")}

	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.bib")
	logPath := filepath.Join(dir, "log.csv")

	runOnce := func() {
		store, err := checkpoint.Open(logPath)
		if err != nil {
			t.Fatalf("checkpoint.Open() error = %v", err)
		}
		defer store.Close()

		p := New(&fakeLookup{}, match.New(), store, outPath, WithLogger(quietLogger()))
		if _, err := p.Run(context.Background(), entries); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	runOnce()

	// Simulate a crash after the output append but before the checkpoint
	// commit: the output holds the entry, the ledger does not.
	header := "Original Key,Title,Authors,DBLP Found,DBLP Key,DBLP Title\n"
	if err := os.WriteFile(logPath, []byte(header), 0644); err != nil {
		t.Fatalf("truncating log: %v", err)
	}

	runOnce()

	out, _, err := bibtex.ParseFile(outPath)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(out) != 1 {
		keys := make([]string, len(out))
		for i, e := range out {
			keys[i] = e.Key
		}
		t.Fatalf("output holds %d entries %v after resume, want 1", len(out), keys)
	}

	store, err := checkpoint.Open(logPath)
	if err != nil {
		t.Fatalf("reopening log: %v", err)
	}
	defer store.Close()
	if !store.IsProcessed("a2020") {
		t.Error("entry missing from the ledger after resume")
	}
}

func TestRun_LookupFailureLoggedAsUnmatched(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("dblp lookup failed after 4 attempts")}

	p, outPath, logPath := newTestPipeline(t, lookup)
	entry := testEntry("fail2020", "Some Paper", "Some Author")

	summary, err := p.Run(context.Background(), []bibtex.Entry{entry})
	if err != nil {
		t.Fatalf("Run() error = %v, lookup failures must not abort the run", err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v, want 1 failed and processed", summary)
	}

	out, _, err := bibtex.ParseFile(outPath)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("failed entry dropped from output")
	}

	store, err := checkpoint.Open(logPath)
	if err != nil {
		t.Fatalf("reopening log: %v", err)
	}
	defer store.Close()
	if !store.IsProcessed("fail2020") {
		t.Error("failed entry missing from the log")
	}
}

func TestRun_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := &fakeLookup{}
	p, _, _ := newTestPipeline(t, lookup)

	_, err := p.Run(ctx, []bibtex.Entry{testEntry("a2020", "T", "A")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times after cancellation, want 0", lookup.calls)
	}
}

func TestRun_LimitStopsEarly(t *testing.T) {
	lookup := &fakeLookup{}
	p, _, _ := newTestPipeline(t, lookup, WithLimit(2))

	entries := []bibtex.Entry{
		testEntry("a2020", "First", "A"),
		testEntry("b2021", "Second", "B"),
		testEntry("c2022", "Third", "C"),
	}
	summary, err := p.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want 2 with limit 2", summary.Processed)
	}
	if lookup.calls != 2 {
		t.Errorf("lookup called %d times, want 2", lookup.calls)
	}
}
