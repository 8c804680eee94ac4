package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexTrade/models"
)

const (
	DefaultTopK = 5

	similarityWeight = 0.7
	priorityWeight   = 0.3

	MetaAsset    = "asset"
	MetaPriority = "priority"

	maxCachedEmbeddings = 4096
)

// Source yields the rows to index at query time.
type Source func() []models.PriorityRecord

// Index ranks enriched rows against a free-text query by combining
// embedding similarity with the row priority.
type Index struct {
	source   Source
	embedder embedding.Embedder
	topK     int

	mu    sync.Mutex
	cache map[string][]float64
}

var _ retriever.Retriever = (*Index)(nil)

func NewIndex(source Source, embedder embedding.Embedder, topK int) *Index {
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Index{
		source:   source,
		embedder: embedder,
		topK:     topK,
		cache:    make(map[string][]float64),
	}
}

// Text is the embeddable representation of one enriched row.
func Text(a models.EnrichedAsset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s holding quantity %d purchase price %.2f", a.Symbol, a.Quantity, a.PurchasePrice)
	if a.CurrentPrice != nil {
		fmt.Fprintf(&b, " current price %.2f", *a.CurrentPrice)
	}
	if a.Sentiment != nil {
		fmt.Fprintf(&b, " sentiment %.2f", *a.Sentiment)
	}
	if a.Headline != nil && *a.Headline != "" {
		fmt.Fprintf(&b, " news %s", *a.Headline)
	}
	return b.String()
}

func (idx *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := idx.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	records := idx.source()
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = Text(rec.Data)
	}
	vectors, err := idx.vectors(ctx, append([]string{query}, texts...))
	if err != nil {
		return nil, fmt.Errorf("embed rows: %w", err)
	}
	queryVec, rowVecs := vectors[0], vectors[1:]

	var maxPriority float64
	for _, rec := range records {
		if rec.Priority > maxPriority {
			maxPriority = rec.Priority
		}
	}

	docs := make([]*schema.Document, 0, len(records))
	for i, rec := range records {
		score := similarityWeight * cosine(queryVec, rowVecs[i])
		if maxPriority > 0 {
			score += priorityWeight * rec.Priority / maxPriority
		}
		doc := &schema.Document{
			ID:      rec.Data.Symbol,
			Content: texts[i],
			MetaData: map[string]any{
				MetaAsset:    rec.Data,
				MetaPriority: rec.Priority,
			},
		}
		docs = append(docs, doc.WithScore(score))
	}

	// stable keeps holding order among equal scores
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score() > docs[j].Score() })
	if options.ScoreThreshold != nil {
		kept := docs[:0]
		for _, d := range docs {
			if d.Score() >= *options.ScoreThreshold {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// vectors embeds texts, reusing cached vectors for rows seen before.
func (idx *Index) vectors(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingAt []int

	idx.mu.Lock()
	for i, text := range texts {
		if v, ok := idx.cache[text]; ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	idx.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}
	embedded, err := idx.embedder.EmbedStrings(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}

	idx.mu.Lock()
	if len(idx.cache)+len(missing) > maxCachedEmbeddings {
		idx.cache = make(map[string][]float64)
	}
	for j, text := range missing {
		idx.cache[text] = embedded[j]
		out[missingAt[j]] = embedded[j]
	}
	idx.mu.Unlock()
	return out, nil
}

// Assets extracts the enriched rows carried by retrieved documents.
func Assets(docs []*schema.Document) []models.EnrichedAsset {
	out := make([]models.EnrichedAsset, 0, len(docs))
	for _, d := range docs {
		if a, ok := d.MetaData[MetaAsset].(models.EnrichedAsset); ok {
			out = append(out, a)
		}
	}
	return out
}
