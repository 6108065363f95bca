package search

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// SimilarityFloor is the minimum cosine similarity a document must reach
// to appear in hybrid results.
const SimilarityFloor = 0.80

// Hybrid scoring weights. Even weighting between the lexical and vector
// signals; change both together if tuning.
const (
	textWeight   = 0.5
	vectorWeight = 0.5
)

// Document is the derived search record, one per email. Regenerable at
// any time from the mirror plus the embedding provider, so the index
// holding it is a cache, never a source of truth.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	RawBody    string    `json:"rawBody"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	SentAt     string    `json:"sentAt"`
	Embeddings []float32 `json:"embeddings"`
	ThreadID   string    `json:"threadId"`
}

// Hit is one ranked search result.
type Hit struct {
	Document   Document `json:"document"`
	Score      float64  `json:"score"`
	Similarity float64  `json:"similarity,omitempty"`
}

// Index is an in-memory inverted index over Documents with a vector field
// for hybrid queries. Postings are rebuilt from the documents on restore,
// so only the documents themselves are serialized.
type Index struct {
	dimensions int
	docs       []Document
	postings   map[string]map[int]float64 // token -> doc position -> weighted term frequency
}

// persistedIndex is the on-disk shape of an Index.
type persistedIndex struct {
	Version    int        `json:"version"`
	Dimensions int        `json:"dimensions"`
	Documents  []Document `json:"documents"`
}

const persistVersion = 1

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		postings:   make(map[string]map[int]float64),
	}
}

// Restore rebuilds a live index from a serialized blob. The rebuilt index
// answers queries identically to the one that was serialized.
func Restore(blob []byte) (*Index, error) {
	var p persistedIndex
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode index blob: %w", err)
	}
	if p.Version != persistVersion {
		return nil, fmt.Errorf("unsupported index blob version %d", p.Version)
	}

	idx := NewIndex(p.Dimensions)
	for _, doc := range p.Documents {
		idx.Insert(doc)
	}
	return idx, nil
}

// Serialize renders the index as an opaque byte blob for storage on the
// account row.
func (i *Index) Serialize() ([]byte, error) {
	return json.Marshal(persistedIndex{
		Version:    persistVersion,
		Dimensions: i.dimensions,
		Documents:  i.docs,
	})
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	return len(i.docs)
}

// Dimensions returns the expected embedding vector length.
func (i *Index) Dimensions() int {
	return i.dimensions
}

// Field boosts for lexical scoring. Title matches outrank body matches;
// the raw HTML body counts least.
var fieldBoosts = []struct {
	boost float64
	text  func(Document) string
}{
	{2.0, func(d Document) string { return d.Title }},
	{1.5, func(d Document) string { return d.From }},
	{1.0, func(d Document) string { return strings.Join(d.To, " ") }},
	{1.0, func(d Document) string { return d.Body }},
	{0.5, func(d Document) string { return d.RawBody }},
}

// Insert adds one document to the live index.
func (i *Index) Insert(doc Document) {
	pos := len(i.docs)
	i.docs = append(i.docs, doc)

	for _, field := range fieldBoosts {
		for _, token := range tokenize(field.text(doc)) {
			if i.postings[token] == nil {
				i.postings[token] = make(map[int]float64)
			}
			i.postings[token][pos] += field.boost
		}
	}
}

// Search runs a pure lexical query and returns ranked hits.
func (i *Index) Search(term string) []Hit {
	scores := i.lexicalScores(term)
	if len(scores) == 0 {
		return []Hit{}
	}

	hits := make([]Hit, 0, len(scores))
	for pos, score := range scores {
		hits = append(hits, Hit{Document: i.docs[pos], Score: score})
	}
	sortHits(hits)
	return hits
}

// HybridSearch combines the lexical score for term with cosine similarity
// against the embeddings field. Only documents at or above the similarity
// floor are eligible; at most limit hits are returned.
func (i *Index) HybridSearch(term string, vector []float32, limit int) ([]Hit, error) {
	if len(vector) != i.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), i.dimensions)
	}

	lexical := i.lexicalScores(term)
	maxLexical := 0.0
	for _, score := range lexical {
		if score > maxLexical {
			maxLexical = score
		}
	}

	hits := make([]Hit, 0)
	for pos, doc := range i.docs {
		similarity := cosineSimilarity(vector, doc.Embeddings)
		if similarity < SimilarityFloor {
			continue
		}

		normalized := 0.0
		if maxLexical > 0 {
			normalized = lexical[pos] / maxLexical
		}

		hits = append(hits, Hit{
			Document:   doc,
			Score:      textWeight*normalized + vectorWeight*similarity,
			Similarity: similarity,
		})
	}

	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (i *Index) lexicalScores(term string) map[int]float64 {
	scores := make(map[int]float64)
	for _, token := range tokenize(term) {
		for pos, weight := range i.postings[token] {
			scores[pos] += weight
		}
	}
	return scores
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
