package pipeline

import (
	"strings"

	"github.com/bilgehanertan/bibtex2dblp/internal/bibtex"
	"github.com/bilgehanertan/bibtex2dblp/internal/dblp"
)

// Rewrite replaces an entry's bibliographic fields with DBLP metadata,
// keeping the original citation key. The DBLP key is recorded in a
// dblp_key field as provenance. Fields DBLP has no value for keep their
// original content.
func Rewrite(entry bibtex.Entry, cand dblp.Candidate) bibtex.Entry {
	out := bibtex.Entry{
		Key:    entry.Key,
		Type:   entryType(cand, entry.Type),
		Fields: make([]bibtex.Field, len(entry.Fields)),
	}
	copy(out.Fields, entry.Fields)

	setIfPresent(&out, "title", cand.Title)
	setIfPresent(&out, "author", strings.Join(cand.Authors, " and "))
	setIfPresent(&out, "year", cand.Year)

	if cand.Venue != "" {
		if out.Type == "inproceedings" {
			out.Set("booktitle", cand.Venue)
			out.Set("journal", "")
		} else {
			out.Set("journal", cand.Venue)
			out.Set("booktitle", "")
		}
	}

	setIfPresent(&out, "volume", cand.Volume)
	setIfPresent(&out, "number", cand.Number)
	setIfPresent(&out, "pages", cand.Pages)
	setIfPresent(&out, "url", cand.EE)
	setIfPresent(&out, "doi", cand.DOI)
	out.Set("dblp_key", cand.Key)

	return out
}

// entryType maps a DBLP publication type to a BibTeX entry type, falling
// back to the original when DBLP's type is unknown.
func entryType(cand dblp.Candidate, original string) string {
	switch cand.Type {
	case "Conference and Workshop Papers":
		return "inproceedings"
	case "Journal Articles", "Informal Publications", "Informal and Other Publications":
		return "article"
	case "Books and Theses":
		return "book"
	case "Parts in Books or Collections":
		return "incollection"
	}
	if original != "" {
		return original
	}
	return "misc"
}

func setIfPresent(e *bibtex.Entry, name, value string) {
	if value != "" {
		e.Set(name, value)
	}
}
