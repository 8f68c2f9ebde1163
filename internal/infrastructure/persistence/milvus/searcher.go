package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-answer-api/internal/application/retrieval"
)

// PassageSearcher 单个集合上的向量检索器，实现 retrieval.VectorSearcher
type PassageSearcher struct {
	client     *Client
	collection string
	source     retrieval.SourceKind
}

// NewChunkSearcher 文档切块检索器
func NewChunkSearcher(client *Client) *PassageSearcher {
	return &PassageSearcher{client: client, collection: CollectionDocChunks, source: retrieval.SourceChunk}
}

// NewSummarySearcher 文档摘要检索器
func NewSummarySearcher(client *Client) *PassageSearcher {
	return &PassageSearcher{client: client, collection: CollectionDocSummaries, source: retrieval.SourceSummary}
}

// Search 执行向量检索。MinScore 在客户端过滤，Milvus 侧只做 TopK 截断。
func (s *PassageSearcher) Search(ctx context.Context, q *retrieval.VectorQuery) ([]retrieval.Candidate, error) {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.PassageSearcher.Search",
		trace.WithAttributes(
			attribute.String("collection", s.collection),
			attribute.String("bucket", q.Bucket),
			attribute.Int("top_k", q.TopK),
		))
	defer span.End()

	collName := s.client.CollectionName(s.collection)

	filter := ""
	if q.Bucket != "" {
		filter = fmt.Sprintf(`bucket == "%s"`, q.Bucket)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "doc_id", "doc_title", "bucket", "text_content"},
		[]entity.Vector{entity.FloatVector(q.Vector)},
		"vector",
		entity.COSINE,
		q.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search %s: %w", s.collection, err)
	}

	var candidates []retrieval.Candidate
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			score := float64(result.Scores[i])
			if q.MinScore > 0 && score < q.MinScore {
				continue
			}
			cand := retrieval.Candidate{
				Source: s.source,
				Score:  score,
			}
			if col, ok := result.Fields.GetColumn("doc_id").(*entity.ColumnVarChar); ok {
				cand.DocID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("doc_title").(*entity.ColumnVarChar); ok {
				cand.DocTitle = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("bucket").(*entity.ColumnVarChar); ok {
				cand.Bucket = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				cand.Text = col.Data()[i]
			}
			candidates = append(candidates, cand)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(candidates)))
	return candidates, nil
}
