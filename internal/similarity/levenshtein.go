// Package similarity computes normalized edit-distance scores for titles
// and author lists.
//
// Scoring convention: TitleSimilarity is a similarity (1.0 = identical),
// AuthorDistance is a distance (0.0 = identical). The asymmetry is
// intentional and the matcher thresholds depend on it.
package similarity

// Levenshtein returns the minimum number of single-rune insertions,
// deletions, and substitutions to transform a into b.
func Levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)

	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min3(ins, del, sub)
		}
		prev, curr = curr, prev
	}

	return prev[len(br)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
