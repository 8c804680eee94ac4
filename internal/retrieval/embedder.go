package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

const defaultDims = 256

// HashEmbedder is a local bag-of-words embedder: tokens are hashed into a
// fixed number of buckets and the vector is L2 normalized.
type HashEmbedder struct {
	Dims int
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultDims
	}
	return &HashEmbedder{Dims: dims}
}

func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.Dims)
	for _, tok := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		vec[hasher.Sum32()%uint32(h.Dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
