package store

import "strings"

// fuzzyMatchThreshold is the minimum trigram similarity for a dataset
// name to count as a fuzzy match.
const fuzzyMatchThreshold = 0.3

// trigramSimilarity computes the Jaccard similarity of the character
// trigram sets of two strings, case-insensitive. Returns a value in
// [0, 1]; identical strings score 1.
func trigramSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	// Pad so short strings still produce grams.
	padded := "  " + s + " "
	out := make(map[string]struct{})
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = struct{}{}
	}
	return out
}
