package similarity

import (
	"math/bits"

	"github.com/bilgehanertan/bibtex2dblp/internal/normalize"
)

// maxExactPairing caps the exact assignment search. Author lists longer
// than this fall back to greedy nearest-unused pairing.
const maxExactPairing = 16

// TitleSimilarity scores two titles in [0,1] after normalization:
// 1 - dist/max(len, len, 1). Identical titles score 1.0; if exactly one
// side normalizes to empty, the score is 0.0.
func TitleSimilarity(a, b string) float64 {
	na := normalize.Title(a)
	nb := normalize.Title(b)

	denom := max(len([]rune(na)), len([]rune(nb)), 1)
	score := 1.0 - float64(Levenshtein(na, nb))/float64(denom)
	return clamp01(score)
}

// AuthorDistance scores two author lists in [0,1]; lower is more similar.
// Each author in the shorter list is paired with a distinct counterpart in
// the longer list so that the total per-pair normalized edit distance is
// minimal; unpaired counterparts cost 1.0 each. The total is divided by
// the longer list length. Invariant to author order within each list.
// Two empty lists score 0.0; exactly one empty list scores 1.0.
func AuthorDistance(a, b []string) float64 {
	na := normalize.Authors(a)
	nb := normalize.Authors(b)

	if len(na) == 0 && len(nb) == 0 {
		return 0.0
	}
	if len(na) == 0 || len(nb) == 0 {
		return 1.0
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	cost := make([][]float64, len(shorter))
	for i, s := range shorter {
		cost[i] = make([]float64, len(longer))
		for j, l := range longer {
			cost[i][j] = nameDistance(s, l)
		}
	}

	var total float64
	if len(longer) <= maxExactPairing {
		total = assignExact(cost, len(shorter), len(longer))
	} else {
		total = assignGreedy(cost, len(shorter), len(longer))
	}
	total += float64(len(longer) - len(shorter)) // unpaired counterparts

	return clamp01(total / float64(len(longer)))
}

// nameDistance is the normalized edit distance between two already
// normalized names.
func nameDistance(a, b string) float64 {
	denom := max(len([]rune(a)), len([]rune(b)), 1)
	return clamp01(float64(Levenshtein(a, b)) / float64(denom))
}

// assignExact finds the minimum-cost pairing of n rows onto m columns
// (n <= m, m <= maxExactPairing) via subset DP: dp[mask] is the minimal
// cost of pairing the first popcount(mask) rows with the column set mask.
func assignExact(cost [][]float64, n, m int) float64 {
	const inf = float64(1 << 30)

	dp := make([]float64, 1<<m)
	for i := range dp {
		dp[i] = inf
	}
	dp[0] = 0

	for mask := 0; mask < 1<<m; mask++ {
		if dp[mask] >= inf {
			continue
		}
		i := bits.OnesCount(uint(mask))
		if i >= n {
			continue
		}
		for j := 0; j < m; j++ {
			if mask&(1<<j) != 0 {
				continue
			}
			next := mask | 1<<j
			if c := dp[mask] + cost[i][j]; c < dp[next] {
				dp[next] = c
			}
		}
	}

	best := inf
	for mask := 0; mask < 1<<m; mask++ {
		if bits.OnesCount(uint(mask)) == n && dp[mask] < best {
			best = dp[mask]
		}
	}
	return best
}

// assignGreedy pairs each row with its cheapest unused column. Not optimal,
// but author lists long enough to hit this path are rare and the greedy
// total is an upper bound on the exact one.
func assignGreedy(cost [][]float64, n, m int) float64 {
	used := make([]bool, m)
	var total float64

	for i := 0; i < n; i++ {
		bestJ := -1
		bestCost := 2.0
		for j := 0; j < m; j++ {
			if used[j] {
				continue
			}
			if cost[i][j] < bestCost {
				bestCost = cost[i][j]
				bestJ = j
			}
		}
		if bestJ >= 0 {
			used[bestJ] = true
			total += bestCost
		}
	}
	return total
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
