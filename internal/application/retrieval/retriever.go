// Package retrieval 提供多源证据检索：向量 chunk、向量 summary、知识图谱三路并发召回。
package retrieval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/config"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

var tracer = otel.Tracer("retrieval")

// Options 单次检索的可选项
type Options struct {
	// Bucket 非空时只检索该桶内的文档
	Bucket string
	// CacheEnabled 是否允许读写 embedding / outcome 缓存
	CacheEnabled bool
}

// Retriever 多源检索器。三个源并发执行，各自带独立超时与准入闸门；
// 任一源失败属于常态而非错误，只有三源全败才算检索失败。
type Retriever struct {
	embedder  Embedder
	chunks    VectorSearcher
	summaries VectorSearcher
	graph     GraphSearcher
	gate      *admission.Gate

	embCache *Cache[[]float32]
	outCache *Cache[*Outcome]

	cfg config.RetrievalConfig
}

// NewRetriever 创建检索器。缓存由调用方构造注入，便于测试与容量控制。
func NewRetriever(
	embedder Embedder,
	chunks VectorSearcher,
	summaries VectorSearcher,
	graph GraphSearcher,
	gate *admission.Gate,
	embCache *Cache[[]float32],
	outCache *Cache[*Outcome],
	cfg config.RetrievalConfig,
) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = 3 * time.Second
	}
	if cfg.GraphTimeout <= 0 {
		cfg.GraphTimeout = 12 * time.Second
	}
	if cfg.OverallDeadline <= 0 {
		cfg.OverallDeadline = 8 * time.Second
	}
	return &Retriever{
		embedder:  embedder,
		chunks:    chunks,
		summaries: summaries,
		graph:     graph,
		gate:      gate,
		embCache:  embCache,
		outCache:  outCache,
		cfg:       cfg,
	}
}

type sourceResult struct {
	source     SourceKind
	candidates []Candidate
	err        error
}

// RetrieveAll 执行三路并发检索并在总截止时间内汇合。
// 任何输入下都返回非 nil 的 Outcome，从不返回错误；
// embedding 失败或三源全败时返回空候选、全失败标记的 Outcome。
func (r *Retriever) RetrieveAll(ctx context.Context, q *Query, opts Options) *Outcome {
	ctx, span := tracer.Start(ctx, "retrieval.RetrieveAll",
		trace.WithAttributes(
			attribute.String("bucket", opts.Bucket),
			attribute.Bool("cache_enabled", opts.CacheEnabled),
		))
	defer span.End()

	start := time.Now()
	key := cacheKey(q.Text, opts.Bucket)

	if opts.CacheEnabled {
		if cached, ok := r.outCache.Get(key); ok {
			metrics.RetrievalCacheTotal.WithLabelValues("outcome", "hit").Inc()
			span.SetAttributes(attribute.Bool("outcome_cache_hit", true))
			return cachedCopy(cached, time.Since(start))
		}
		metrics.RetrievalCacheTotal.WithLabelValues("outcome", "miss").Inc()
	}

	emb, embHit, err := r.embedQuery(ctx, q.Text, key, opts.CacheEnabled)
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "query embedding failed, returning empty outcome", "error", err.Error())
		return &Outcome{Candidates: []Candidate{}, Latency: time.Since(start)}
	}

	// 慢源不随请求结束被取消：已经付出的检索开销留给缓存和下一轮
	detached := context.WithoutCancel(ctx)
	results := make(chan sourceResult, 3)

	go r.searchSource(detached, SourceChunk, q, emb, opts, results)
	go r.searchSource(detached, SourceSummary, q, emb, opts, results)
	go r.searchSource(detached, SourceGraph, q, emb, opts, results)

	out := &Outcome{Candidates: []Candidate{}, EmbeddingCacheHit: embHit}

	deadline := time.NewTimer(r.cfg.OverallDeadline)
	defer deadline.Stop()

	received := 0
collect:
	for received < 3 {
		select {
		case res := <-results:
			received++
			r.recordSource(ctx, out, res)
		case <-deadline.C:
			// 截止已到：带走已完成的结果，未归队的源记为本轮失败，
			// 但不取消它们，慢不等于错
			logger.Warn(ctx, "retrieval deadline expired",
				"received", received,
				"deadline", r.cfg.OverallDeadline.String(),
			)
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	out.Latency = time.Since(start)
	span.SetAttributes(
		attribute.Int("candidates", len(out.Candidates)),
		attribute.Int("sources_ok", out.SucceededSources()),
	)

	if opts.CacheEnabled && len(out.Candidates) > 0 {
		// 缓存副本而非原件：返回给调用方的切片随后会被 Reranker 改写
		entry := *out
		entry.Candidates = append([]Candidate(nil), out.Candidates...)
		r.outCache.Put(key, &entry)
	}
	return out
}

// embedQuery 计算或复用查询向量。缓存命中时返回的向量与上次写入的逐字节相同。
func (r *Retriever) embedQuery(ctx context.Context, text, key string, cacheEnabled bool) ([]float32, bool, error) {
	if r.embedder == nil {
		return nil, false, ErrEmbedderUnavailable
	}
	if NormalizeText(text) == "" {
		return nil, false, ErrEmptyQuery
	}

	if cacheEnabled {
		if emb, ok := r.embCache.Get(key); ok {
			metrics.RetrievalCacheTotal.WithLabelValues("embedding", "hit").Inc()
			return emb, true, nil
		}
		metrics.RetrievalCacheTotal.WithLabelValues("embedding", "miss").Inc()
	}

	release, err := r.gate.Acquire(ctx, admission.ClassVector)
	if err != nil {
		return nil, false, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.VectorTimeout)
	defer cancel()

	emb, err := r.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, false, err
	}

	if cacheEnabled {
		r.embCache.Put(key, emb)
	}
	return emb, false, nil
}

// searchSource 执行单个源的检索：先过准入闸门，再在自身超时内调用后端。
// 无论结果如何都会向 out 投递恰好一条消息。
func (r *Retriever) searchSource(ctx context.Context, source SourceKind, q *Query, emb []float32, opts Options, out chan<- sourceResult) {
	class := admission.ClassVector
	timeout := r.cfg.VectorTimeout
	if source == SourceGraph {
		class = admission.ClassGraph
		timeout = r.cfg.GraphTimeout
	}

	release, err := r.gate.Acquire(ctx, class)
	if err != nil {
		status := "error"
		if admission.IsOverload(err) {
			status = "overload"
		}
		metrics.RetrievalSourceTotal.WithLabelValues(string(source), status).Inc()
		out <- sourceResult{source: source, err: err}
		return
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var cands []Candidate
	switch source {
	case SourceChunk:
		cands, err = r.chunks.Search(callCtx, &VectorQuery{
			Vector:   emb,
			Bucket:   opts.Bucket,
			TopK:     r.cfg.TopK,
			MinScore: r.cfg.MinScore,
		})
	case SourceSummary:
		cands, err = r.summaries.Search(callCtx, &VectorQuery{
			Vector:   emb,
			Bucket:   opts.Bucket,
			TopK:     r.cfg.TopK,
			MinScore: r.cfg.MinScore,
		})
	case SourceGraph:
		cands, err = r.graph.Search(callCtx, &GraphQuery{
			Query:  q.Text,
			Vector: emb,
			Bucket: opts.Bucket,
			Limit:  r.cfg.TopK,
		})
	}

	elapsed := time.Since(start)
	metrics.RetrievalSourceDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		status := "error"
		if callCtx.Err() == context.DeadlineExceeded {
			status = "timeout"
		}
		metrics.RetrievalSourceTotal.WithLabelValues(string(source), status).Inc()
	case len(cands) == 0:
		metrics.RetrievalSourceTotal.WithLabelValues(string(source), "empty").Inc()
	default:
		metrics.RetrievalSourceTotal.WithLabelValues(string(source), "ok").Inc()
	}

	out <- sourceResult{source: source, candidates: cands, err: err}
}

// recordSource 把单源结果并入 Outcome。空结果与错误都记为该源失败，不上抛。
func (r *Retriever) recordSource(ctx context.Context, out *Outcome, res sourceResult) {
	if res.err != nil || len(res.candidates) == 0 {
		if res.err != nil {
			logger.Warn(ctx, "retrieval source failed",
				"source", string(res.source),
				"error", res.err.Error(),
			)
		}
		return
	}

	for i := range res.candidates {
		if res.candidates[i].Source == "" {
			res.candidates[i].Source = res.source
		}
	}
	out.Candidates = append(out.Candidates, res.candidates...)

	switch res.source {
	case SourceChunk:
		out.ChunkOK = true
	case SourceSummary:
		out.SummaryOK = true
	case SourceGraph:
		out.GraphOK = true
	}
}

// cachedCopy 返回缓存结果的浅拷贝，避免调用方（如 Reranker）改写缓存条目
func cachedCopy(o *Outcome, latency time.Duration) *Outcome {
	cp := *o
	cp.Candidates = make([]Candidate, len(o.Candidates))
	copy(cp.Candidates, o.Candidates)
	cp.Latency = latency
	cp.OutcomeCacheHit = true
	return &cp
}
