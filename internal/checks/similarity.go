package checks

import "strings"

// wordSetSimilarity computes Jaccard similarity on lowercased word sets.
// Robust to reordering and light reformatting, which is what distinguishes a
// reworded-but-complete disclaimer from a truncated one.
func wordSetSimilarity(a, b string) float64 {
	wordsA := wordSet(strings.ToLower(a))
	wordsB := wordSet(strings.ToLower(b))

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA)
	for w := range wordsB {
		if !wordsA[w] {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// containmentSimilarity measures how much of the template's vocabulary the
// candidate text covers. Used when the candidate is an entire slide: Jaccard
// would be diluted by the slide's unrelated words.
func containmentSimilarity(template, text string) float64 {
	tmpl := wordSet(strings.ToLower(template))
	body := wordSet(strings.ToLower(text))
	if len(tmpl) == 0 {
		return 0
	}
	covered := 0
	for w := range tmpl {
		if body[w] {
			covered++
		}
	}
	return float64(covered) / float64(len(tmpl))
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
