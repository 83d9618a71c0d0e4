package matcher

import (
	"sort"
	"strings"
)

// TokenSortRatio scores two titles 0-100 after sorting their whitespace
// separated tokens, so word order never changes the score. Two empty inputs
// score 0: an empty title carries nothing to match on.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Ratio is the normalized InDel similarity of two strings:
// 100 * 2*LCS / (len(a)+len(b)), measured in runes.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	lcs := lcsLength(ra, rb)
	return 100 * float64(2*lcs) / float64(total)
}

// lcsLength is the longest common subsequence length using two rolling rows.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
