// Package pipeline drives the per-entry conversion loop:
// normalize -> query -> score -> select -> emit -> checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bilgehanertan/bibtex2dblp/internal/bibtex"
	"github.com/bilgehanertan/bibtex2dblp/internal/checkpoint"
	"github.com/bilgehanertan/bibtex2dblp/internal/dblp"
	"github.com/bilgehanertan/bibtex2dblp/internal/match"
)

// Status is the per-entry processing state.
type Status string

// Entry states. Logged and Failed are terminal; Failed entries are still
// logged as unmatched and never abort the run.
const (
	StatusPending   Status = "pending"
	StatusQueried   Status = "queried"
	StatusScored    Status = "scored"
	StatusMatched   Status = "matched"
	StatusUnmatched Status = "unmatched"
	StatusLogged    Status = "logged"
	StatusFailed    Status = "failed"
)

// Lookup is the candidate retrieval dependency. *dblp.Client satisfies it.
type Lookup interface {
	Lookup(ctx context.Context, title string, authors []string) ([]dblp.Candidate, error)
}

// Pipeline processes entries sequentially, in input order, with exactly
// one writer to the output and checkpoint sinks.
type Pipeline struct {
	lookup  Lookup
	matcher match.Matcher
	store   *checkpoint.Store
	outPath string
	logger  *slog.Logger

	// limit stops the run after this many newly processed entries;
	// 0 means no limit.
	limit int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimit stops the run after n newly processed entries.
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		p.limit = n
	}
}

// WithLogger sets the progress logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline writing output entries to outPath and checkpoint
// rows to store.
func New(lookup Lookup, matcher match.Matcher, store *checkpoint.Store, outPath string, opts ...Option) *Pipeline {
	p := &Pipeline{
		lookup:  lookup,
		matcher: matcher,
		store:   store,
		outPath: outPath,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary reports what a run did.
type Summary struct {
	Total     int // entries in the input
	Skipped   int // already checkpointed
	Processed int // newly processed this run
	Matched   int
	Unmatched int
	Failed    int // lookup failures, logged as unmatched
}

// Run processes the entries. Per-entry lookup failures are recovered
// locally as "not found" outcomes; only sink I/O errors abort the run,
// preserving all checkpoints committed so far.
func (p *Pipeline) Run(ctx context.Context, entries []bibtex.Entry) (Summary, error) {
	summary := Summary{Total: len(entries)}

	if err := p.reconcileOutput(); err != nil {
		return summary, fmt.Errorf("reconciling output: %w", err)
	}

	for _, entry := range entries {
		if p.store.IsProcessed(entry.Key) {
			p.logger.Debug("skipping checkpointed entry", "key", entry.Key)
			summary.Skipped++
			continue
		}
		if p.limit > 0 && summary.Processed >= p.limit {
			p.logger.Info("entry limit reached", "limit", p.limit)
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := p.processEntry(ctx, entry, &summary); err != nil {
			return summary, err
		}
		summary.Processed++
	}

	return summary, nil
}

// reconcileOutput drops output entries that have no committed ledger
// row. A crash between the output append and the checkpoint commit
// leaves such an orphan; without removing it, the resumed run would
// reprocess the key and append the entry a second time.
func (p *Pipeline) reconcileOutput() error {
	existing, _, err := bibtex.ParseFile(p.outPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	kept := make([]bibtex.Entry, 0, len(existing))
	seen := make(map[string]struct{}, len(existing))
	dropped := 0
	for _, e := range existing {
		if !p.store.IsProcessed(e.Key) {
			dropped++
			continue
		}
		if _, dup := seen[e.Key]; dup {
			dropped++
			continue
		}
		seen[e.Key] = struct{}{}
		kept = append(kept, e)
	}
	if dropped == 0 {
		return nil
	}

	p.logger.Warn("dropping output entries with no ledger row",
		"file", p.outPath, "dropped", dropped, "kept", len(kept))
	return bibtex.WriteFile(p.outPath, kept)
}

// processEntry runs one entry through the state machine. The returned
// error is always a sink failure; everything else is absorbed into an
// unmatched outcome.
func (p *Pipeline) processEntry(ctx context.Context, entry bibtex.Entry, summary *Summary) error {
	title := entry.Title()
	authors := entry.Authors()
	status := StatusPending

	candidates, err := p.lookup.Lookup(ctx, title, authors)
	if err != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Transient errors have exhausted their retry budget inside the
		// client by now; both kinds downgrade to an unmatched outcome.
		p.logger.Warn("lookup failed, treating as not found",
			"key", entry.Key, "transient", dblp.IsTransient(err), "err", err)
		status = StatusFailed
		candidates = nil
	} else {
		status = StatusQueried
	}

	result := p.matcher.Select(entry.Key, title, authors, candidates)
	if status != StatusFailed {
		status = StatusScored
		if result.Matched {
			status = StatusMatched
		} else {
			status = StatusUnmatched
		}
	}

	output := entry
	rec := checkpoint.Record{
		OriginalKey: entry.Key,
		Title:       title,
		Authors:     authors,
	}
	if result.Matched {
		output = Rewrite(entry, *result.Candidate)
		rec.DBLPFound = true
		rec.DBLPKey = result.Candidate.Key
		rec.DBLPTitle = result.Candidate.Title
		summary.Matched++
	} else if status == StatusFailed {
		summary.Failed++
	} else {
		summary.Unmatched++
	}

	// Emit the output entry first, then commit the checkpoint row. A
	// crash between the two reprocesses the entry on resume; the ledger
	// never records work whose output is missing.
	if err := bibtex.AppendToFile(p.outPath, output); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := p.store.Record(rec); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	status = StatusLogged

	p.logger.Info("processed entry",
		"key", entry.Key,
		"status", string(status),
		"matched", result.Matched,
		"title_score", result.TitleScore,
		"author_score", result.AuthorScore,
		"dblp_key", rec.DBLPKey,
		"done", p.store.Count())
	return nil
}
