// Package embedding turns text into fixed-width hashed bag-of-words vectors.
//
// The vectors are not semantic. Each token is hashed into one of Dim buckets
// with a sign taken from the hash's low bit, then the vector is L2-normalized.
// Collisions are expected. The contract (Compute + CosineSimilarity) is what
// callers depend on, so a learned model can replace it later.
package embedding

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Dim is the width of every vector produced by Compute.
const Dim = 384

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	nonWordPattern = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Tokenize lowercases text, drops URLs and punctuation, and splits on whitespace.
func Tokenize(text string) []string {
	s := strings.ToLower(text)
	s = urlPattern.ReplaceAllString(s, " ")
	s = nonWordPattern.ReplaceAllString(s, " ")
	return strings.Fields(s)
}

// hashToken is 32-bit FNV-1a.
func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

// Compute returns the normalized hashed vector for text. Empty input yields
// the zero vector.
func Compute(text string) []float32 {
	vec := make([]float32, Dim)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}
	for _, tok := range tokens {
		h := hashToken(tok)
		idx := h % Dim
		if h&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// CosineSimilarity is the dot product of two already-normalized vectors,
// truncated to the shorter length. Returns 0 for nil or empty input.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	// float32 storage can push |dot| a hair past 1
	return math.Max(-1, math.Min(1, dot))
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}
