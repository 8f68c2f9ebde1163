package retrieval

import "errors"

var (
	// ErrEmbedderUnavailable 表示向量化能力未配置
	ErrEmbedderUnavailable = errors.New("embedder is not configured")
	// ErrEmptyQuery 查询归一化后为空
	ErrEmptyQuery = errors.New("query is empty")
)
