package fingerprint

import (
	"image"
	"math"
)

// VectorDim is the dimensionality of the luma vector.
const VectorDim = 64

// computeVector reduces the image to an 8x8 luma grid and L2-normalizes it.
// Cosine distance between two such vectors tracks visual similarity well
// enough for candidate retrieval, exact decisions stay with the hashes.
func computeVector(img image.Image) []float32 {
	gray := toGrayscale(resizeImage(img, 8, 8))

	vec := make([]float32, VectorDim)
	var norm float64
	i := 0
	for y := range 8 {
		for x := range 8 {
			v := gray[x][y]
			vec[i] = float32(v)
			norm += v * v
			i++
		}
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// VectorSimilar returns true if two vectors have cosine similarity above
// the threshold.
func VectorSimilar(a, b []float32, threshold float64) bool {
	return CosineSimilarity(a, b) >= threshold
}
