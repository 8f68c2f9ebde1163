package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-answer-api/internal/application/retrieval"
)

type stubScorer struct {
	calls  int
	scores []float64
	err    error
}

func (s *stubScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func candidateSet(n int) []retrieval.Candidate {
	cands := make([]retrieval.Candidate, n)
	for i := range cands {
		cands[i] = retrieval.Candidate{
			Source: retrieval.SourceChunk,
			Text:   string(rune('a' + i)),
			DocID:  string(rune('A' + i)),
			Score:  float64(n-i) / float64(n),
		}
	}
	return cands
}

func TestCombineAndRerankEmpty(t *testing.T) {
	c := NewCombiner(&stubScorer{}, 10)
	out := c.CombineAndRerank(context.Background(), "q", nil)
	assert.Empty(t, out)
}

func TestCombineAndRerankSkipsScorerForSmallSets(t *testing.T) {
	scorer := &stubScorer{}
	c := NewCombiner(scorer, 10)

	cands := candidateSet(5)
	out := c.CombineAndRerank(context.Background(), "q", cands)

	assert.Zero(t, scorer.calls)
	require.Len(t, out, 5)
	for _, cand := range out {
		assert.False(t, cand.Reranked)
	}
	// 保持按源拼接的原始顺序
	assert.Equal(t, "a", out[0].Text)
	assert.Equal(t, "e", out[4].Text)
}

func TestCombineAndRerankInvokesScorer(t *testing.T) {
	// 打分与原始向量分相反：最后一个候选得分最高
	scorer := &stubScorer{scores: []float64{1, 2, 3, 4, 5, 6}}
	c := NewCombiner(scorer, 10)

	cands := candidateSet(6)
	out := c.CombineAndRerank(context.Background(), "q", cands)

	assert.Equal(t, 1, scorer.calls)
	require.Len(t, out, 6)
	for _, cand := range out {
		assert.True(t, cand.Reranked)
	}
	assert.Equal(t, "f", out[0].Text)
	assert.Equal(t, float64(6), out[0].RerankScore)
	assert.Equal(t, "a", out[5].Text)
}

func TestCombineAndRerankScorerErrorFallsBack(t *testing.T) {
	scorer := &stubScorer{err: errors.New("reranker down")}
	c := NewCombiner(scorer, 10)

	cands := candidateSet(8)
	out := c.CombineAndRerank(context.Background(), "q", cands)

	require.Len(t, out, 8)
	for _, cand := range out {
		assert.False(t, cand.Reranked)
	}
	// 退回按源拼接的原始顺序
	assert.Equal(t, "a", out[0].Text)
	assert.Equal(t, "h", out[7].Text)
}

func TestCombineAndRerankScoreCountMismatchFallsBack(t *testing.T) {
	scorer := &stubScorer{scores: []float64{1, 2, 3}}
	c := NewCombiner(scorer, 10)

	cands := candidateSet(8)
	out := c.CombineAndRerank(context.Background(), "q", cands)

	require.Len(t, out, 8)
	for _, cand := range out {
		assert.False(t, cand.Reranked)
	}
}

func TestCombineAndRerankTruncatesToTopK(t *testing.T) {
	c := NewCombiner(nil, 3)
	out := c.CombineAndRerank(context.Background(), "q", candidateSet(8))
	assert.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Text)
}

func TestCombineAndRerankNilScorer(t *testing.T) {
	c := NewCombiner(nil, 10)
	out := c.CombineAndRerank(context.Background(), "q", candidateSet(8))
	require.Len(t, out, 8)
	for _, cand := range out {
		assert.False(t, cand.Reranked)
	}
}

func TestCombineAndRerankTagsUntaggedAsChunk(t *testing.T) {
	c := NewCombiner(nil, 10)
	cands := []retrieval.Candidate{
		{Text: "untagged", Score: 0.9},
		{Source: retrieval.SourceGraph, Text: "graph", Score: 0.8},
	}
	out := c.CombineAndRerank(context.Background(), "q", cands)

	assert.Equal(t, retrieval.SourceChunk, out[0].Source)
	assert.Equal(t, retrieval.SourceGraph, out[1].Source)
	// 输入切片不被改写
	assert.Equal(t, retrieval.SourceKind(""), cands[0].Source)
}

func TestCombineAndRerankKeepsPerSourceOrderWithoutRerank(t *testing.T) {
	// 图检索相似度与向量余弦分不在同一刻度，未重排时不得混排
	c := NewCombiner(nil, 10)
	cands := []retrieval.Candidate{
		{Source: retrieval.SourceChunk, Text: "chunk-1", Score: 0.42},
		{Source: retrieval.SourceChunk, Text: "chunk-2", Score: 0.38},
		{Source: retrieval.SourceSummary, Text: "summary-1", Score: 0.55},
		{Source: retrieval.SourceGraph, Text: "graph-1", Score: 0.97},
		{Source: retrieval.SourceGraph, Text: "graph-2", Score: 0.91},
	}
	out := c.CombineAndRerank(context.Background(), "q", cands)

	require.Len(t, out, 5)
	got := make([]string, len(out))
	for i, cand := range out {
		got[i] = cand.Text
	}
	assert.Equal(t, []string{"chunk-1", "chunk-2", "summary-1", "graph-1", "graph-2"}, got)
}

func TestEffectiveScore(t *testing.T) {
	assert.Equal(t, 0.4, effectiveScore(retrieval.Candidate{Score: 0.4}))
	assert.Equal(t, 0.9, effectiveScore(retrieval.Candidate{Score: 0.4, RerankScore: 0.9, Reranked: true}))
}
