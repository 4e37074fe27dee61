package bibtex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// String renders the entry as BibTeX source.
func (e Entry) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", e.Type, e.Key))
	for _, f := range e.Fields {
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", f.Name, f.Value))
	}
	b.WriteString("}\n")

	return b.String()
}

// AppendToFile appends an entry to a .bib file, creating it if needed.
// Entries are separated by a blank line.
func AppendToFile(path string, entry Entry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry.String() + "\n"); err != nil {
		return fmt.Errorf("writing entry %s: %w", entry.Key, err)
	}

	return f.Sync()
}

// WriteFile replaces a .bib file with the given entries. The new content
// is written to a temp file in the same directory, synced, and renamed
// over the target, so readers never see a half-written file.
func WriteFile(path string, entries []Entry) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".bib-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	for _, e := range entries {
		if _, err := f.WriteString(e.String() + "\n"); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("writing entry %s: %w", e.Key, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
