// Package bibtex provides a minimal BibTeX model: parsing a .bib file into
// entries, field access, and serialization back to BibTeX source.
package bibtex

import (
	"strings"
)

// Entry represents a single BibTeX entry. Field order is preserved from the
// source so that serialization is stable across runs.
type Entry struct {
	Key    string
	Type   string // article, inproceedings, misc, ...
	Fields []Field
}

// Field is a single name/value pair within an entry. Names are stored
// lowercase; values are stored without the surrounding braces or quotes.
type Field struct {
	Name  string
	Value string
}

// Get returns the value of the named field, or "" if absent.
func (e Entry) Get(name string) string {
	name = strings.ToLower(name)
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Set replaces the named field in place, or appends it if absent.
// Setting an empty value removes the field.
func (e *Entry) Set(name, value string) {
	name = strings.ToLower(name)
	for i, f := range e.Fields {
		if f.Name == name {
			if value == "" {
				e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			} else {
				e.Fields[i].Value = value
			}
			return
		}
	}
	if value != "" {
		e.Fields = append(e.Fields, Field{Name: name, Value: value})
	}
}

// Title returns the entry's title field with whitespace collapsed.
func (e Entry) Title() string {
	return collapseWhitespace(e.Get("title"))
}

// Authors splits the author field on " and " into individual names.
// Newlines inside the field are treated as spaces. Returns nil when the
// entry has no author field.
func (e Entry) Authors() []string {
	raw := collapseWhitespace(e.Get("author"))
	if raw == "" {
		return nil
	}
	var authors []string
	for _, name := range strings.Split(raw, " and ") {
		name = strings.TrimSpace(name)
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
