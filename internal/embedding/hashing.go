package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Compile-time interface check.
var _ Provider = (*Hashing)(nil)

// Hashing is a deterministic local embedder based on the feature-hashing
// trick: token features (for text) or byte trigram features (for binary
// content) are hashed into a fixed number of signed buckets and the result
// is L2-normalized. The same input always yields the same vector, which
// makes it the default provider for development and tests. It is not a
// learned model; production deployments configure a remote or OpenAI
// provider instead.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder with the given dimensionality.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 512
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Name() string    { return "hashing" }
func (h *Hashing) Dimensions() int { return h.dims }

// EmbedContent embeds raw content bytes. Valid UTF-8 is embedded through
// the token space shared with queries; binary content falls back to byte
// trigrams.
func (h *Hashing) EmbedContent(ctx context.Context, content []byte) ([]float32, error) {
	if utf8.Valid(content) {
		return h.embedText(string(content)), nil
	}
	return h.embedBytes(content), nil
}

// EmbedQuery embeds a text query.
func (h *Hashing) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embedText(text), nil
}

func (h *Hashing) embedText(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := tokenize(text)
	for _, tok := range tokens {
		h.bump(vec, tok)
	}
	// Token bigrams give the vector some word-order sensitivity.
	for i := 0; i+1 < len(tokens); i++ {
		h.bump(vec, tokens[i]+" "+tokens[i+1])
	}
	return normalize(vec)
}

func (h *Hashing) embedBytes(data []byte) []float32 {
	vec := make([]float32, h.dims)
	for i := 0; i+3 <= len(data); i++ {
		h.bump(vec, string(data[i:i+3]))
	}
	return normalize(vec)
}

// normalize scales vec to unit length in place. A zero vector is
// returned unchanged.
func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// bump hashes a feature into a signed bucket.
func (h *Hashing) bump(vec []float32, feature string) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
