package store

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StemVector maps a question stem to a unit-length bag-of-words vector of
// size dim. Words and adjacent word pairs are hashed into buckets with a
// hash-derived sign, so rephrasings that share most words land close
// together. Returns nil for text with no words.
func StemVector(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return nil
	}

	vec := make([]float32, dim)
	add := func(term string, weight float32) {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(dim)] += sign * weight
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
