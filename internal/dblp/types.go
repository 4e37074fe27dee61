package dblp

import (
	"encoding/json"
	"errors"
	"strings"
)

var errUnknownAuthorShape = errors.New("unknown author value shape")

// Candidate is a flattened publication record from the DBLP search API.
// Missing fields are empty strings, never an error.
type Candidate struct {
	Key     string   // DBLP key, e.g. "journals/tse/Smith20"
	Title   string
	Authors []string
	Venue   string
	Year    string
	Type    string // "Journal Articles", "Conference and Workshop Papers", ...
	EE      string // electronic edition URL
	DOI     string
	Pages   string
	Volume  string
	Number  string
	URL     string
}

// searchResponse mirrors the JSON envelope of the publ search API:
// {"result": {"hits": {"hit": [{"info": {...}}, ...]}}}.
type searchResponse struct {
	Result struct {
		Hits struct {
			Hit []struct {
				Info hitInfo `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type hitInfo struct {
	Key     string     `json:"key"`
	Title   flexString `json:"title"`
	Authors authorList `json:"authors"`
	Venue   flexString `json:"venue"`
	Year    flexString `json:"year"`
	Type    string     `json:"type"`
	EE      flexString `json:"ee"`
	DOI     string     `json:"doi"`
	Pages   string     `json:"pages"`
	Volume  flexString `json:"volume"`
	Number  flexString `json:"number"`
	URL     string     `json:"url"`
}

// flexString tolerates string, number, or array-of-string JSON values.
// DBLP serializes some fields (venue, ee) as arrays when a publication has
// several values; the first one wins.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}

	var list []flexString
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) > 0 {
			*f = list[0]
		} else {
			*f = ""
		}
		return nil
	}

	// Unknown shape: tolerate rather than fail the whole candidate.
	*f = ""
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// authorList tolerates every shape DBLP uses for the authors field:
// a single author object, an array of author objects, bare strings, or a
// missing field entirely.
type authorList struct {
	Author json.RawMessage `json:"author"`
}

// Names returns the author names in order, with empty names dropped.
func (a authorList) Names() []string {
	if len(a.Author) == 0 || string(a.Author) == "null" {
		return nil
	}

	var single authorName
	if err := json.Unmarshal(a.Author, &single); err == nil {
		if s := single.String(); s != "" {
			return []string{s}
		}
		return nil
	}

	var list []authorName
	if err := json.Unmarshal(a.Author, &list); err == nil {
		names := make([]string, 0, len(list))
		for _, n := range list {
			if s := n.String(); s != "" {
				names = append(names, s)
			}
		}
		return names
	}

	return nil
}

// authorName tolerates {"text": "..."} objects and bare strings.
type authorName string

func (n *authorName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = authorName(s)
		return nil
	}

	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*n = authorName(obj.Text)
		return nil
	}

	return errUnknownAuthorShape
}

func (n authorName) String() string {
	return strings.TrimSpace(string(n))
}

// flatten converts a hit's info block into a Candidate.
func (info hitInfo) flatten() Candidate {
	return Candidate{
		Key:     info.Key,
		Title:   strings.TrimSpace(info.Title.String()),
		Authors: info.Authors.Names(),
		Venue:   info.Venue.String(),
		Year:    info.Year.String(),
		Type:    info.Type,
		EE:      info.EE.String(),
		DOI:     info.DOI,
		Pages:   info.Pages,
		Volume:  info.Volume.String(),
		Number:  info.Number.String(),
		URL:     info.URL,
	}
}
