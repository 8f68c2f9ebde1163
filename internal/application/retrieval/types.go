package retrieval

import (
	"context"
	"strings"
	"time"
)

// SourceKind 证据来源
type SourceKind string

const (
	SourceChunk   SourceKind = "chunk"
	SourceSummary SourceKind = "summary"
	SourceGraph   SourceKind = "graph"
)

// Query 一次检索请求的只读输入
type Query struct {
	Text       string
	Language   string
	Difficulty string
	SessionID  string
	FollowUp   bool
}

// Candidate 单条检索证据。Reranker 之后只追加重排得分，其余字段不变。
type Candidate struct {
	Source   SourceKind
	Text     string
	DocID    string
	DocTitle string
	Bucket   string
	Score    float64

	// RerankScore 交叉编码器重排得分，Reranked 为 true 时有效
	RerankScore float64
	Reranked    bool
}

// Outcome 多源检索结果。0~2 个源失败时照常返回；
// 只有三源全部失败且无候选时才算硬失败，由编排层兜底。
type Outcome struct {
	Candidates []Candidate

	ChunkOK   bool
	SummaryOK bool
	GraphOK   bool

	Latency           time.Duration
	EmbeddingCacheHit bool
	OutcomeCacheHit   bool
}

// AllFailed 三个源是否全部失败
func (o *Outcome) AllFailed() bool {
	return !o.ChunkOK && !o.SummaryOK && !o.GraphOK
}

// SucceededSources 成功源数量
func (o *Outcome) SucceededSources() int {
	n := 0
	for _, ok := range []bool{o.ChunkOK, o.SummaryOK, o.GraphOK} {
		if ok {
			n++
		}
	}
	return n
}

// Embedder 查询向量化端口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorQuery 向量检索参数
type VectorQuery struct {
	Vector   []float32
	Bucket   string
	TopK     int
	MinScore float64
}

// VectorSearcher 向量检索端口，分别由 chunk / summary 两个集合实现
type VectorSearcher interface {
	Search(ctx context.Context, q *VectorQuery) ([]Candidate, error)
}

// GraphQuery 知识图谱检索参数
type GraphQuery struct {
	Query  string
	Vector []float32
	Bucket string
	Limit  int
}

// GraphSearcher 知识图谱局部检索端口
type GraphSearcher interface {
	Search(ctx context.Context, q *GraphQuery) ([]Candidate, error)
}

// NormalizeText 归一化查询文本，作为缓存键的一部分
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cacheKey(text, bucket string) string {
	return NormalizeText(text) + "|" + bucket
}
