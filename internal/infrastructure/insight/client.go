// Package insight 提供社会临界点辅助信号服务客户端
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/chat"
	"rag-answer-api/internal/config"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

const expectedFactorCount = 5

// Client 辅助信号客户端，实现 chat.InsightProvider。
// 置信度与相似度是两道独立阈值，任一不达标都整体丢弃，绝不返回半截结果。
type Client struct {
	endpoint      string
	topK          int
	minConfidence float64
	minSimilarity float64
	gate          *admission.Gate
	httpClient    *http.Client
}

type queryRequest struct {
	Text            string  `json:"text"`
	TopK            int     `json:"top_k"`
	IncludeMetadata bool    `json:"include_metadata"`
	MinSimilarity   float64 `json:"min_similarity"`
}

type queryResult struct {
	RephrasedContent  string  `json:"rephrased_content"`
	QualifyingFactors string  `json:"qualifying_factors"`
	STPConfidence     float64 `json:"stp_confidence"`
	SimilarityScore   float64 `json:"similarity_score"`
}

type queryResponse struct {
	Results      []queryResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

func NewClient(cfg *config.InsightServiceConfig, gate *admission.Gate) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 1
	}
	return &Client{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		topK:          topK,
		minConfidence: cfg.MinConfidence,
		minSimilarity: cfg.MinSimilarity,
		gate:          gate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch 取最佳匹配洞察。未通过双阈值或无结果时返回 (nil, nil)。
func (c *Client) Fetch(ctx context.Context, text string) (*chat.Insight, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("insight endpoint is empty")
	}

	release, err := c.gate.Acquire(ctx, admission.ClassInsight)
	if err != nil {
		metrics.InsightTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	defer release()

	resp, err := c.query(ctx, text)
	if err != nil {
		metrics.InsightTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(resp.Results) == 0 {
		metrics.InsightTotal.WithLabelValues("rejected").Inc()
		return nil, nil
	}
	best := resp.Results[0]

	if best.STPConfidence < c.minConfidence || best.SimilarityScore < c.minSimilarity {
		metrics.InsightTotal.WithLabelValues("rejected").Inc()
		logger.Debug(ctx, "insight below acceptance thresholds",
			"confidence", best.STPConfidence,
			"similarity", best.SimilarityScore,
		)
		return nil, nil
	}

	factors := ParseQualifyingFactors(best.QualifyingFactors)
	if len(factors) != expectedFactorCount {
		logger.Warn(ctx, "unexpected qualifying factor count",
			"got", len(factors),
			"want", expectedFactorCount,
		)
	}

	metrics.InsightTotal.WithLabelValues("accepted").Inc()
	return &chat.Insight{
		Content:    best.RephrasedContent,
		Factors:    factors,
		Confidence: best.STPConfidence,
		Similarity: best.SimilarityScore,
	}, nil
}

func (c *Client) query(ctx context.Context, text string) (*queryResponse, error) {
	reqBody, err := json.Marshal(&queryRequest{
		Text:            text,
		TopK:            c.topK,
		IncludeMetadata: true,
		MinSimilarity:   c.minSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insight request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create insight request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("insight request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("insight request failed: status=%d", httpResp.StatusCode)
	}

	var resp queryResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode insight response: %w", err)
	}
	return &resp, nil
}
