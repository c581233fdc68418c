package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints,
// in [0, 1]. A nil or empty fingerprint yields 0.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	// Iterate the smaller vector.
	small, large := a, b
	if len(b.tokens) < len(a.tokens) {
		small, large = b, a
	}
	var dot float64
	for token, count := range small.tokens {
		if other, ok := large.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
