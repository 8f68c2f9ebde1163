// Package graph 提供知识图谱局部检索服务客户端
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
)

// Client 图谱检索客户端，实现 retrieval.GraphSearcher。
// 图谱服务内部可能自己调用语言模型，超时显著长于向量检索。
type Client struct {
	endpoint             string
	includeCommunities   bool
	includeRelationships bool
	httpClient           *http.Client
}

type searchRequest struct {
	Query                string    `json:"query"`
	Embedding            []float32 `json:"embedding"`
	Limit                int       `json:"limit"`
	IncludeCommunities   bool      `json:"includeCommunities"`
	IncludeRelationships bool      `json:"includeRelationships"`
	Bucket               string    `json:"bucket,omitempty"`
}

type searchItem struct {
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
	DocumentName    string  `json:"document_name,omitempty"`
	DocumentID      string  `json:"document_id,omitempty"`
	Bucket          string  `json:"bucket,omitempty"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

func NewClient(cfg *config.GraphServiceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:             strings.TrimRight(cfg.Endpoint, "/"),
		includeCommunities:   cfg.IncludeCommunities,
		includeRelationships: cfg.IncludeRelationships,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search 执行图谱局部检索
func (c *Client) Search(ctx context.Context, q *retrieval.GraphQuery) ([]retrieval.Candidate, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("graph endpoint is empty")
	}

	reqBody, err := json.Marshal(&searchRequest{
		Query:                q.Query,
		Embedding:            q.Vector,
		Limit:                q.Limit,
		IncludeCommunities:   c.includeCommunities,
		IncludeRelationships: c.includeRelationships,
		Bucket:               q.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create graph search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("graph search request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("graph search request failed: status=%d", httpResp.StatusCode)
	}

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode graph search response: %w", err)
	}

	candidates := make([]retrieval.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		candidates = append(candidates, retrieval.Candidate{
			Source:   retrieval.SourceGraph,
			Text:     item.Content,
			DocID:    item.DocumentID,
			DocTitle: item.DocumentName,
			Bucket:   item.Bucket,
			Score:    item.SimilarityScore,
		})
	}
	return candidates, nil
}
