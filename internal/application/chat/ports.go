package chat

import "context"

// InboundTranslation 入站翻译结果
type InboundTranslation struct {
	TranslatedText   string
	DetectedLanguage string
	IsEnglish        bool
}

// OutboundTranslation 出站翻译请求：标题、正文与可选的附加洞察一起翻译
type OutboundTranslation struct {
	TargetLang         string
	Title              string
	Response           string
	SocialTippingPoint string
}

// OutboundResult 出站翻译结果
type OutboundResult struct {
	Title              string
	Response           string
	SocialTippingPoint string
}

// Translator 翻译网关端口。实现方负责准入与降级，调用方只在错误时退回原文。
type Translator interface {
	TranslateIn(ctx context.Context, text string) (*InboundTranslation, error)
	TranslateOut(ctx context.Context, req *OutboundTranslation) (*OutboundResult, error)
}

// Insight 通过双阈值筛选后的辅助洞察。Factors 预期恰好五条限定因子。
type Insight struct {
	Content    string
	Factors    []string
	Confidence float64
	Similarity float64
}

// InsightProvider 辅助洞察端口。未通过阈值或服务异常时返回 (nil, nil)/(nil, err)，
// 洞察缺席不影响主回答。
type InsightProvider interface {
	Fetch(ctx context.Context, text string) (*Insight, error)
}

// CitationResolver 把文档引用解析为外部可访问链接。解析失败返回空串即可。
type CitationResolver interface {
	Resolve(ctx context.Context, docID, bucket string) (string, error)
}
