// Package rerank 负责多源候选的合并与交叉编码器重排。
package rerank

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

var tracer = otel.Tracer("rerank")

// Scorer 交叉编码器打分端口。返回与 docs 等长的相关性分数切片。
type Scorer interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Combiner 合并三路候选并按查询相关性重排
type Combiner struct {
	scorer Scorer
	// topK 重排后保留的候选上限
	topK int
	// minRerank 候选数不超过该值时跳过交叉编码器，保持原始拼接顺序
	minRerank int
}

func NewCombiner(scorer Scorer, topK int) *Combiner {
	if topK <= 0 {
		topK = 10
	}
	return &Combiner{scorer: scorer, topK: topK, minRerank: 5}
}

// CombineAndRerank 合并候选并重排。交叉编码器失败时退回按源拼接的原始顺序，
// 重排失败不致命，只降质。
func (c *Combiner) CombineAndRerank(ctx context.Context, query string, candidates []retrieval.Candidate) []retrieval.Candidate {
	ctx, span := tracer.Start(ctx, "rerank.CombineAndRerank")
	defer span.End()

	if len(candidates) == 0 {
		return candidates
	}

	merged := make([]retrieval.Candidate, len(candidates))
	copy(merged, candidates)
	for i := range merged {
		if merged[i].Source == "" {
			merged[i].Source = retrieval.SourceChunk
		}
	}

	reranked := false
	if c.scorer != nil && len(merged) > c.minRerank {
		if err := c.crossEncode(ctx, query, merged); err != nil {
			span.RecordError(err)
			logger.Warn(ctx, "cross-encoder rerank failed, keeping per-source order",
				"candidates", len(merged),
				"error", err.Error(),
			)
			metrics.LLMCallTotal.WithLabelValues("reranker", "error").Inc()
		} else {
			metrics.LLMCallTotal.WithLabelValues("reranker", "ok").Inc()
			reranked = true
		}
	}

	// 各源原始分刻度不可比，只有交叉编码器分数才值得全局排序；
	// 未重排时保持按源拼接的原始顺序
	if reranked {
		sort.SliceStable(merged, func(i, j int) bool {
			return effectiveScore(merged[i]) > effectiveScore(merged[j])
		})
	}

	if len(merged) > c.topK {
		merged = merged[:c.topK]
	}
	span.SetAttributes(attribute.Int("kept", len(merged)))
	return merged
}

func (c *Combiner) crossEncode(ctx context.Context, query string, cands []retrieval.Candidate) error {
	docs := make([]string, len(cands))
	for i, cand := range cands {
		docs[i] = cand.Text
	}

	start := time.Now()
	scores, err := c.scorer.Score(ctx, query, docs)
	metrics.LLMCallDuration.WithLabelValues("reranker").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	if len(scores) != len(cands) {
		return errScoreCountMismatch
	}

	for i := range cands {
		cands[i].RerankScore = scores[i]
		cands[i].Reranked = true
	}
	return nil
}

// effectiveScore 重排分优先，未重排的候选退回原始向量分
func effectiveScore(c retrieval.Candidate) float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.Score
}
