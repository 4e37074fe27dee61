// Package match selects the best DBLP candidate for a source entry using
// fuzzy title and author scores with confidence thresholds.
package match

import (
	"github.com/bilgehanertan/bibtex2dblp/internal/dblp"
	"github.com/bilgehanertan/bibtex2dblp/internal/similarity"
)

// Default confidence thresholds. Title uses a similarity (higher is
// better), author uses a distance (lower is better). The inverted
// directions are a deliberate scoring convention; the two cutoffs were
// tuned together and must not be flipped independently.
const (
	DefaultTitleThreshold  = 0.7
	DefaultAuthorThreshold = 0.4
)

// Result is the outcome of matching one source entry against its
// candidates. Candidate is set iff Matched. On no-match, TitleScore and
// AuthorScore hold the best-seen scores for diagnostics.
type Result struct {
	SourceKey   string
	Matched     bool
	Candidate   *dblp.Candidate
	TitleScore  float64 // similarity in [0,1], higher is better
	AuthorScore float64 // distance in [0,1], lower is better
}

// Matcher applies threshold rules to candidate scores.
type Matcher struct {
	// TitleThreshold is the minimum title similarity for a match.
	TitleThreshold float64
	// AuthorThreshold is the maximum author distance for a match.
	AuthorThreshold float64
}

// New returns a Matcher with the default thresholds.
func New() Matcher {
	return Matcher{
		TitleThreshold:  DefaultTitleThreshold,
		AuthorThreshold: DefaultAuthorThreshold,
	}
}

// Select scores every candidate against the entry's title and authors and
// picks the best survivor: maximum title similarity, ties broken by
// minimum author distance, then by candidate order. An empty candidate
// slice is a normal input and yields an unmatched Result.
func (m Matcher) Select(sourceKey, title string, authors []string, candidates []dblp.Candidate) Result {
	result := Result{SourceKey: sourceKey}

	bestIdx := -1
	for i := range candidates {
		titleScore := similarity.TitleSimilarity(title, candidates[i].Title)
		authorScore := similarity.AuthorDistance(authors, candidates[i].Authors)

		survives := titleScore >= m.TitleThreshold && authorScore <= m.AuthorThreshold

		if bestIdx < 0 && (i == 0 || betterDiagnostic(titleScore, authorScore, result)) {
			// Best-seen scores double as diagnostics when nothing
			// survives. The first candidate seeds them; comparing
			// against the zero Result would report a perfect author
			// distance that no candidate earned.
			result.TitleScore = titleScore
			result.AuthorScore = authorScore
		}
		if !survives {
			continue
		}

		if bestIdx < 0 ||
			titleScore > result.TitleScore ||
			(titleScore == result.TitleScore && authorScore < result.AuthorScore) {
			bestIdx = i
			result.TitleScore = titleScore
			result.AuthorScore = authorScore
		}
	}

	if bestIdx >= 0 {
		result.Matched = true
		chosen := candidates[bestIdx]
		result.Candidate = &chosen
	}
	return result
}

// betterDiagnostic reports whether the new scores are more informative
// than the currently recorded best-seen pair.
func betterDiagnostic(titleScore, authorScore float64, current Result) bool {
	if titleScore != current.TitleScore {
		return titleScore > current.TitleScore
	}
	return authorScore < current.AuthorScore
}
