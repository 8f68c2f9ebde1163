// Package answer 基于召回证据生成最终回答，并在生成失败时提供降级文案。
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
	"rag-answer-api/internal/domain/entity"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

var tracer = otel.Tracer("answer")

// ChatModelFactory 提供按名称获取 ChatModel 的能力
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Input 一轮生成的全部输入
type Input struct {
	Question   string
	Language   string
	Difficulty string
	FollowUp   bool
	Evidence   []retrieval.Candidate
	History    []*entity.ChatTurn
	Summary    string
}

// Result 生成结果。Fallback 为 true 表示模型调用失败、返回的是降级文案。
type Result struct {
	Title    string
	Answer   string
	Fallback bool
}

// Generator 回答生成器。生成全程处理语言固定为配置的 ProcessingLanguage，
// 多语言在编排层通过翻译网关出入转换。
type Generator struct {
	factory ChatModelFactory
	gate    *admission.Gate
	cfg     config.AnswerConfig
}

func NewGenerator(factory ChatModelFactory, gate *admission.Gate, cfg config.AnswerConfig) *Generator {
	if cfg.ProcessingLanguage == "" {
		cfg.ProcessingLanguage = "en"
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = 10
	}
	return &Generator{factory: factory, gate: gate, cfg: cfg}
}

// Generate 调用 ChatModel 生成回答。模型不可用或调用失败时返回降级结果与原始错误，
// 调用方可据此决定是否仍然响应用户。
func (g *Generator) Generate(ctx context.Context, in *Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "answer.Generate")
	defer span.End()

	if in == nil || strings.TrimSpace(in.Question) == "" {
		return nil, errors.New("answer: empty question")
	}
	// 证据为空也照样尝试生成，Prompt 已约束模型说明已知与未知；
	// 只有生成本身失败时才落到无知识降级文案
	span.SetAttributes(attribute.Int("evidence", len(in.Evidence)))

	release, err := g.gate.Acquire(ctx, admission.ClassGeneration)
	if err != nil {
		span.RecordError(err)
		return g.fallbackResult(ctx, in, err)
	}
	defer release()

	chatModel, err := g.factory.Get(ctx, "")
	if err != nil {
		span.RecordError(err)
		return g.fallbackResult(ctx, in, err)
	}

	msgs := buildMessages(in, g.cfg.ProcessingLanguage, g.cfg.MaxEvidence)

	start := time.Now()
	out, err := chatModel.Generate(ctx, msgs)
	metrics.LLMCallDuration.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("generation", "error").Inc()
		span.RecordError(err)
		return g.fallbackResult(ctx, in, err)
	}
	metrics.LLMCallTotal.WithLabelValues("generation", "ok").Inc()

	title, text := parseModelOutput(out.Content)
	if strings.TrimSpace(text) == "" {
		return g.fallbackResult(ctx, in, errors.New("model returned empty answer"))
	}
	if title == "" {
		title = deriveTitle(in.Question)
	}
	return &Result{Title: title, Answer: text}, nil
}

func (g *Generator) fallbackResult(ctx context.Context, in *Input, cause error) (*Result, error) {
	logger.Warn(ctx, "answer generation degraded to fallback", "error", cause.Error())
	text := GenerationFallback(in.Language)
	if len(in.Evidence) == 0 {
		text = NoKnowledgeFallback(in.Language)
	}
	return &Result{
		Title:    fallbackTitle(in.Language),
		Answer:   text,
		Fallback: true,
	}, cause
}

// parseModelOutput 宽容解析模型输出。优先按 {"title","answer"} JSON 解析，
// 模型夹杂多余文本或干脆没给 JSON 时退回整段文本。
func parseModelOutput(raw string) (title, text string) {
	extracted := extractJSONObject(raw)
	var parsed struct {
		Title  string `json:"title"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err == nil && strings.TrimSpace(parsed.Answer) != "" {
		return strings.TrimSpace(parsed.Title), strings.TrimSpace(parsed.Answer)
	}
	return "", strings.TrimSpace(raw)
}

// extractJSONObject 从模型输出中截取第一个完整 JSON 对象。
// 容错逻辑：模型可能会在 JSON 前后夹杂多余文本。
func extractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && d == '{' {
			return raw
		}
	}

	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// deriveTitle 模型没给标题时从问题截取一个
func deriveTitle(question string) string {
	q := strings.TrimSpace(question)
	r := []rune(q)
	if len(r) <= 48 {
		return q
	}
	return strings.TrimSpace(string(r[:48])) + "…"
}
