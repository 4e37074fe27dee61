package bibtex

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse_SingleEntry(t *testing.T) {
	src := `@article{smith2020,
  title = {A Study of Graph Algorithms},
  author = {J. Smith and A. Lee},
  year = {2020},
}`

	entries, syntaxErrs := Parse(src)
	if len(syntaxErrs) != 0 {
		t.Fatalf("Parse() syntax errors = %v", syntaxErrs)
	}
	if len(entries) != 1 {
		t.Fatalf("Parse() returned %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.Key != "smith2020" {
		t.Errorf("Key = %q, want smith2020", e.Key)
	}
	if e.Type != "article" {
		t.Errorf("Type = %q, want article", e.Type)
	}
	if e.Title() != "A Study of Graph Algorithms" {
		t.Errorf("Title() = %q", e.Title())
	}
	if got, want := e.Authors(), []string{"J. Smith", "A. Lee"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Authors() = %v, want %v", got, want)
	}
}

func TestParse_MultipleEntriesInOrder(t *testing.T) {
	src := `
@article{a2020, title = {First}}
Some stray prose between entries.
@inproceedings{b2021, title = {Second}}
@misc{c2022, title = {Third}}
`
	entries, syntaxErrs := Parse(src)
	if len(syntaxErrs) != 0 {
		t.Fatalf("Parse() syntax errors = %v", syntaxErrs)
	}
	if len(entries) != 3 {
		t.Fatalf("Parse() returned %d entries, want 3", len(entries))
	}
	if entries[0].Key != "a2020" || entries[1].Key != "b2021" || entries[2].Key != "c2022" {
		t.Errorf("entries out of order: %s, %s, %s", entries[0].Key, entries[1].Key, entries[2].Key)
	}
	if entries[1].Type != "inproceedings" {
		t.Errorf("Type = %q, want inproceedings", entries[1].Type)
	}
}

func TestParse_ValueStyles(t *testing.T) {
	src := `@article{key1,
  title = {Braced {Nested} Value},
  journal = "Quoted Value",
  year = 2020,
  volume = {12},
}`

	entries, syntaxErrs := Parse(src)
	if len(syntaxErrs) != 0 {
		t.Fatalf("Parse() syntax errors = %v", syntaxErrs)
	}
	e := entries[0]

	if got := e.Get("title"); got != "Braced {Nested} Value" {
		t.Errorf("title = %q", got)
	}
	if got := e.Get("journal"); got != "Quoted Value" {
		t.Errorf("journal = %q", got)
	}
	if got := e.Get("year"); got != "2020" {
		t.Errorf("year = %q", got)
	}
	if got := e.Get("volume"); got != "12" {
		t.Errorf("volume = %q", got)
	}
}

func TestParse_SkipsCommentAndString(t *testing.T) {
	src := `@comment{this is ignored}
@string{jacm = {Journal of the ACM}}
@article{real2020, title = {Kept}}`

	entries, syntaxErrs := Parse(src)
	if len(syntaxErrs) != 0 {
		t.Fatalf("Parse() syntax errors = %v", syntaxErrs)
	}
	if len(entries) != 1 || entries[0].Key != "real2020" {
		t.Fatalf("Parse() = %v, want only real2020", entries)
	}
}

func TestParse_AuthorsAcrossNewlines(t *testing.T) {
	src := `@article{multi,
  author = {First Person and
            Second Person and
            Third Person},
}`

	entries, _ := Parse(src)
	got := entries[0].Authors()
	want := []string{"First Person", "Second Person", "Third Person"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Authors() = %v, want %v", got, want)
	}
}

func TestParse_MalformedEntryRecovers(t *testing.T) {
	// The middle entry has a field with no '='; parsing resumes at the
	// next entry and the broken entry keeps its key and clean fields.
	src := `@article{good2020, title = {Fine}}
@article{broken2021,
  title = {Parsed},
  author {No Equals},
}
@article{also2022, title = {Also Fine}}`

	entries, syntaxErrs := Parse(src)
	if len(syntaxErrs) != 1 {
		t.Fatalf("Parse() syntax errors = %v, want 1", syntaxErrs)
	}
	if syntaxErrs[0].Key != "broken2021" {
		t.Errorf("SyntaxError.Key = %q, want broken2021", syntaxErrs[0].Key)
	}
	if len(entries) != 3 {
		t.Fatalf("Parse() returned %d entries, want 3 (broken entry kept)", len(entries))
	}
	if entries[1].Key != "broken2021" || entries[1].Get("title") != "Parsed" {
		t.Errorf("broken entry = %+v, want key and clean fields kept", entries[1])
	}
	if entries[2].Key != "also2022" {
		t.Errorf("entry after the broken one = %q, want also2022", entries[2].Key)
	}
}

func TestParse_UnterminatedValue(t *testing.T) {
	entries, syntaxErrs := Parse(`@article{broken, title = {no closing`)
	if len(syntaxErrs) != 1 {
		t.Fatalf("Parse() syntax errors = %v, want 1", syntaxErrs)
	}
	// The key survives even though the value ran off the end of input.
	if len(entries) != 1 || entries[0].Key != "broken" {
		t.Errorf("entries = %v, want the broken entry kept by key", entries)
	}
}

func TestParse_MissingKey(t *testing.T) {
	entries, syntaxErrs := Parse(`@article{, title = {x}}
@article{ok2020, title = {y}}`)
	if len(syntaxErrs) != 1 {
		t.Fatalf("Parse() syntax errors = %v, want 1", syntaxErrs)
	}
	if syntaxErrs[0].Key != "" {
		t.Errorf("SyntaxError.Key = %q, want empty", syntaxErrs[0].Key)
	}
	if len(entries) != 1 || entries[0].Key != "ok2020" {
		t.Errorf("entries = %v, want only ok2020 (keyless entry dropped)", entries)
	}
}

func TestParseFile_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "in.bib")

	src := `@article{smith2020,
  title = {A Study of Graph Algorithms},
  author = {J. Smith and A. Lee},
  year = {2020},
}
`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	entries, syntaxErrs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(syntaxErrs) != 0 {
		t.Fatalf("ParseFile() syntax errors = %v", syntaxErrs)
	}

	reparsed, reErrs := Parse(entries[0].String())
	if len(reErrs) != 0 {
		t.Fatalf("re-parsing serialized entry: %v", reErrs)
	}
	if !reflect.DeepEqual(entries[0], reparsed[0]) {
		t.Errorf("round trip mismatch:\n%v\n%v", entries[0], reparsed[0])
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, _, err := ParseFile("/nonexistent/input.bib"); err == nil {
		t.Error("ParseFile() should fail for a missing file")
	}
}
