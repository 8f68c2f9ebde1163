// Package translate 提供翻译网关客户端
package translate

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
	"rag-answer-api/pkg/metrics"
)

// Client 翻译服务客户端，实现 chat.Translator。
// 入站把用户语言归一到处理语言；出站把标题、正文与洞察打包成一次调用翻回用户语言。
type Client struct {
	endpoint   string
	gate       *admission.Gate
	httpClient *http.Client
}

type translateInRequest struct {
	Text string `json:"text"`
}

type translateInResponse struct {
	TranslatedText   string `json:"translated_text"`
	DetectedLanguage string `json:"detected_language"`
	IsEnglish        bool   `json:"is_english"`
}

type translateOutRequest struct {
	TargetLang         string `json:"target_lang"`
	Title              string `json:"title"`
	Response           string `json:"response"`
	SocialTippingPoint string `json:"social_tipping_point,omitempty"`
}

type translateOutResponse struct {
	Title              string `json:"title"`
	Response           string `json:"response"`
	SocialTippingPoint string `json:"social_tipping_point,omitempty"`
}

func NewClient(cfg *config.TranslateServiceConfig, gate *admission.Gate) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		gate:     gate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TranslateIn 检测语言并翻译到处理语言
func (c *Client) TranslateIn(ctx context.Context, text string) (*chat.InboundTranslation, error) {
	release, err := c.gate.Acquire(ctx, admission.ClassTranslate)
	if err != nil {
		metrics.TranslationTotal.WithLabelValues("in", "overload").Inc()
		return nil, err
	}
	defer release()

	var resp translateInResponse
	if err := c.post(ctx, "/translate/in", &translateInRequest{Text: text}, &resp); err != nil {
		metrics.TranslationTotal.WithLabelValues("in", "error").Inc()
		return nil, err
	}
	metrics.TranslationTotal.WithLabelValues("in", "ok").Inc()

	return &chat.InboundTranslation{
		TranslatedText:   resp.TranslatedText,
		DetectedLanguage: resp.DetectedLanguage,
		IsEnglish:        resp.IsEnglish,
	}, nil
}

// TranslateOut 把回答整体翻译到目标语言。单次远程调用，附加延迟有界。
func (c *Client) TranslateOut(ctx context.Context, req *chat.OutboundTranslation) (*chat.OutboundResult, error) {
	release, err := c.gate.Acquire(ctx, admission.ClassTranslate)
	if err != nil {
		metrics.TranslationTotal.WithLabelValues("out", "overload").Inc()
		return nil, err
	}
	defer release()

	var resp translateOutResponse
	body := &translateOutRequest{
		TargetLang:         req.TargetLang,
		Title:              req.Title,
		Response:           req.Response,
		SocialTippingPoint: req.SocialTippingPoint,
	}
	if err := c.post(ctx, "/translate/out", body, &resp); err != nil {
		metrics.TranslationTotal.WithLabelValues("out", "error").Inc()
		return nil, err
	}
	metrics.TranslationTotal.WithLabelValues("out", "ok").Inc()

	return &chat.OutboundResult{
		Title:              resp.Title,
		Response:           resp.Response,
		SocialTippingPoint: resp.SocialTippingPoint,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	if c.endpoint == "" {
		return fmt.Errorf("translate endpoint is empty")
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal translate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create translate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("translate request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("translate request failed: status=%d", httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode translate response: %w", err)
	}
	return nil
}
