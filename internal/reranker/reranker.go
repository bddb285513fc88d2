// Package reranker rescores a short list of candidate texts against a query
// with a cross-encoder.
//
// Cross-encoders see the query and a document together, which is more
// accurate than comparing independent embeddings and much slower, so the
// reranker only ever sees the pool that survived vector scoring.
package reranker

import (
	"context"
	"fmt"
	"sort"
)

// Result is one reranked entry: the index into the input list and its relevance.
type Result struct {
	Index int
	Score float64
}

// Reranker reorders candidate texts by relevance to the query.
type Reranker interface {
	// Rerank returns at most topK results sorted by descending score. Ties keep input order.
	Rerank(ctx context.Context, query string, docs []string, topK int) ([]Result, error)
}

// Scorer scores (query, document) pairs in one batched call.
type Scorer interface {
	ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error)
}

// CrossEncoder implements Reranker on top of a batched Scorer.
type CrossEncoder struct {
	scorer Scorer
}

// NewCrossEncoder creates a reranker over scorer.
func NewCrossEncoder(scorer Scorer) *CrossEncoder {
	return &CrossEncoder{scorer: scorer}
}

// Rerank scores every document once and keeps the topK best.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, docs []string, topK int) ([]Result, error) {
	if len(docs) == 0 || topK <= 0 {
		return []Result{}, nil
	}

	scores, err := c.scorer.ScorePairs(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder scoring: %w", err)
	}
	if len(scores) != len(docs) {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d documents", len(scores), len(docs))
	}

	results := make([]Result, len(docs))
	for i, s := range scores {
		results[i] = Result{Index: i, Score: s}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

var _ Reranker = (*CrossEncoder)(nil)
