// Package citation 提供引用链接解析客户端
package citation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-answer-api/internal/config"
	"rag-answer-api/internal/infrastructure/persistence/redis"
)

// Resolver 把文档引用解析为临时可分享链接。
// 链接生成在远端，本服务只做带 TTL 的 Redis 缓存，TTL 不超过链接本身的有效期。
type Resolver struct {
	endpoint   string
	linkTTL    time.Duration
	cache      *redis.Cache
	httpClient *http.Client
}

type resolveRequest struct {
	DocID  string `json:"doc_id"`
	Bucket string `json:"bucket,omitempty"`
}

type resolveResponse struct {
	Link string `json:"link"`
}

func NewResolver(cfg *config.CitationServiceConfig, cache *redis.Cache) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	linkTTL := cfg.LinkTTL
	if linkTTL <= 0 {
		linkTTL = 10 * time.Minute
	}
	return &Resolver{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		linkTTL:  linkTTL,
		cache:    cache,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Resolve 解析文档链接。缓存未命中时经 singleflight 合并并发解析。
func (r *Resolver) Resolve(ctx context.Context, docID, bucket string) (string, error) {
	if r.endpoint == "" {
		return "", fmt.Errorf("citation endpoint is empty")
	}

	key := "citation:link:" + docID + ":" + bucket

	if r.cache == nil {
		return r.resolve(ctx, docID, bucket)
	}

	data, err := r.cache.GetOrLoadSafe(ctx, key, r.linkTTL, func() (interface{}, error) {
		return r.resolve(ctx, docID, bucket)
	})
	if err != nil {
		return "", err
	}

	var link string
	if err := json.Unmarshal(data, &link); err != nil {
		return "", fmt.Errorf("failed to decode cached citation link: %w", err)
	}
	return link, nil
}

func (r *Resolver) resolve(ctx context.Context, docID, bucket string) (string, error) {
	reqBody, err := json.Marshal(&resolveRequest{DocID: docID, Bucket: bucket})
	if err != nil {
		return "", fmt.Errorf("failed to marshal citation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create citation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("citation request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("citation request failed: status=%d", httpResp.StatusCode)
	}

	var resp resolveResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode citation response: %w", err)
	}
	return resp.Link, nil
}
