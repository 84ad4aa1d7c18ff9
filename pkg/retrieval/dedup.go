package retrieval

import "strings"

// Dedup removes exact-normalized duplicates and near-duplicates from a
// ranked hit list, preserving order. A later hit is dropped when its
// normalized text is substring-contained in an earlier hit (or vice versa)
// and the length ratio of the shorter to the longer exceeds simThreshold.
// Quadratic over the candidate set, which callers cap beforehand.
func Dedup(hits []Hit, simThreshold float64) []Hit {
	if simThreshold <= 0 {
		simThreshold = 0.7
	}
	kept := make([]Hit, 0, len(hits))
	norms := make([]string, 0, len(hits))
	for _, hit := range hits {
		norm := normalize(hit.Content)
		if norm == "" {
			continue
		}
		dup := false
		for _, existing := range norms {
			if norm == existing || nearDuplicate(norm, existing, simThreshold) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, hit)
		norms = append(norms, norm)
	}
	return kept
}

func nearDuplicate(a, b string, threshold float64) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(longer) == 0 {
		return false
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio <= threshold {
		return false
	}
	return strings.Contains(longer, shorter)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
