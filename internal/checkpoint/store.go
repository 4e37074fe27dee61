// Package checkpoint tracks which entries a conversion run has already
// processed. The ledger is an append-only CSV file that doubles as the
// human-readable conversion log; presence of a key means the entry is
// done. Resumption state is rebuilt purely by replaying the file.
package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header is the exact column order of the conversion log.
var Header = []string{"Original Key", "Title", "Authors", "DBLP Found", "DBLP Key", "DBLP Title"}

// keyColumn is the ledger's primary key column.
const keyColumn = "Original Key"

// Record is one processed entry: the checkpoint marker and the log row
// share a lifecycle and are committed as a single CSV row.
type Record struct {
	OriginalKey string
	Title       string
	Authors     []string
	DBLPFound   bool
	DBLPKey     string
	DBLPTitle   string
}

func (r Record) row() []string {
	found := "No"
	if r.DBLPFound {
		found = "Yes"
	}
	return []string{
		r.OriginalKey,
		r.Title,
		strings.Join(r.Authors, "; "),
		found,
		r.DBLPKey,
		r.DBLPTitle,
	}
}

// Store is the single-writer checkpoint ledger. Not safe for concurrent
// use; the pipeline is the only writer.
type Store struct {
	f         *os.File
	w         *csv.Writer
	processed map[string]struct{}
}

// Open loads the already-processed keys from an existing ledger and opens
// it for appending. A new file gets the header row written immediately.
func Open(path string) (*Store, error) {
	processed, existed, err := loadProcessed(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	s := &Store{
		f:         f,
		w:         csv.NewWriter(f),
		processed: processed,
	}

	if !existed {
		if err := s.commit(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing log header: %w", err)
		}
	}

	return s, nil
}

// loadProcessed replays an existing ledger and collects the processed
// keys. Returns existed=false when the file is absent or empty.
func loadProcessed(path string) (map[string]struct{}, bool, error) {
	processed := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, false, nil
		}
		return nil, false, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate short rows from older runs

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return processed, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading log header: %w", err)
	}

	keyIdx := -1
	for i, col := range header {
		if col == keyColumn {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, false, fmt.Errorf("log file %s has no %q column", path, keyColumn)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("reading log file: %w", err)
		}
		if keyIdx < len(row) && row[keyIdx] != "" {
			processed[row[keyIdx]] = struct{}{}
		}
	}

	return processed, true, nil
}

// IsProcessed reports whether the key already has a committed row.
func (s *Store) IsProcessed(key string) bool {
	_, ok := s.processed[key]
	return ok
}

// Count returns the number of processed keys.
func (s *Store) Count() int {
	return len(s.processed)
}

// Record commits one processed entry. The row is flushed and synced to
// disk before Record returns, so a crash afterwards never loses it and a
// crash before leaves no partial row to skip on resume.
func (s *Store) Record(rec Record) error {
	if rec.OriginalKey == "" {
		return fmt.Errorf("checkpoint record missing key")
	}
	if s.IsProcessed(rec.OriginalKey) {
		return fmt.Errorf("key %q already checkpointed", rec.OriginalKey)
	}

	if err := s.commit(rec.row()); err != nil {
		return fmt.Errorf("recording %s: %w", rec.OriginalKey, err)
	}

	s.processed[rec.OriginalKey] = struct{}{}
	return nil
}

// commit writes a single row through to stable storage.
func (s *Store) commit(row []string) error {
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.f.Sync()
}

// Close closes the underlying file.
func (s *Store) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
