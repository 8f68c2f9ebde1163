// Package chat 实现一轮问答的全流程编排：翻译、检索、重排、生成、引用与持久化。
package chat

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/answer"
	"rag-answer-api/internal/application/rerank"
	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
	"rag-answer-api/internal/domain/entity"
	"rag-answer-api/internal/domain/repository"
	apperrors "rag-answer-api/pkg/errors"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

var tracer = otel.Tracer("chat")

// Stage 请求处理阶段，主要用于日志与追踪定位
type Stage string

const (
	StageReceived      Stage = "RECEIVED"
	StageTranslatedIn  Stage = "TRANSLATED_IN"
	StageRetrieved     Stage = "RETRIEVED"
	StageReranked      Stage = "RERANKED"
	StageGenerated     Stage = "GENERATED"
	StageTranslatedOut Stage = "TRANSLATED_OUT"
	StagePersisted     Stage = "PERSISTED"
	StageDone          Stage = "DONE"
)

// Request 一轮问答请求
type Request struct {
	UserID     string
	SessionID  string
	Question   string
	Language   string
	Difficulty string
	Bucket     string
	// FollowUp 为 true 时 SessionID 必须指向已存在的会话
	FollowUp bool
	// DisableCache 跳过 embedding / outcome 缓存，调试用
	DisableCache bool
}

// Citation 回答引用，按重排名次编号
type Citation struct {
	Index  int    `json:"index"`
	DocID  string `json:"doc_id"`
	Title  string `json:"title"`
	Bucket string `json:"bucket,omitempty"`
	Source string `json:"source"`
	// Score 0-100 的相关度百分比
	Score int    `json:"score"`
	Link  string `json:"link,omitempty"`
}

// insightFallback 洞察未通过阈值或取用失败时的固定替代文案，
// 出站翻译时随正文一起转换到用户语言
const insightFallback = "No social tipping point insight is available for this question."

// Result 一轮问答结果
type Result struct {
	SessionID string     `json:"session_id"`
	Title     string     `json:"title"`
	Answer    string     `json:"answer"`
	Language  string     `json:"language"`
	Citations []Citation `json:"citations,omitempty"`
	// ReferenceCount 去重后的引用文档总数，可能大于 Citations 长度
	ReferenceCount int `json:"reference_count"`
	// UsesRetrieval 本轮回答是否用到了检索证据
	UsesRetrieval bool `json:"uses_retrieval"`
	// SocialTippingPoint 社会临界点洞察正文；未通过双阈值时为固定替代文案
	SocialTippingPoint string `json:"social_tipping_point"`
	// QualifyingFactors 洞察的限定因子，替代文案时为空
	QualifyingFactors []string      `json:"qualifying_factors,omitempty"`
	Fallback          bool          `json:"fallback"`
	Latency           time.Duration `json:"-"`
}

// Orchestrator 问答编排器。chat 许可覆盖整个请求生命周期，
// 各下游调用再各自过自己的闸门。
type Orchestrator struct {
	gate       *admission.Gate
	translator Translator
	retriever  *retrieval.Retriever
	combiner   *rerank.Combiner
	generator  *answer.Generator
	insight    InsightProvider
	citations  CitationResolver
	sessions   repository.ChatSessionRepository
	turns      repository.ChatTurnRepository
	summarizer *Summarizer
	cfg        config.AnswerConfig
}

func NewOrchestrator(
	gate *admission.Gate,
	translator Translator,
	retriever *retrieval.Retriever,
	combiner *rerank.Combiner,
	generator *answer.Generator,
	insight InsightProvider,
	citations CitationResolver,
	sessions repository.ChatSessionRepository,
	turns repository.ChatTurnRepository,
	summarizer *Summarizer,
	cfg config.AnswerConfig,
) *Orchestrator {
	if cfg.ProcessingLanguage == "" {
		cfg.ProcessingLanguage = "en"
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = 8
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 12
	}
	return &Orchestrator{
		gate:       gate,
		translator: translator,
		retriever:  retriever,
		combiner:   combiner,
		generator:  generator,
		insight:    insight,
		citations:  citations,
		sessions:   sessions,
		turns:      turns,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// Handle 处理一轮问答。除参数错误、会话不存在和 chat 闸门过载外不返回错误：
// 检索、生成、翻译、洞察、持久化的失败都在内部降级。
func (o *Orchestrator) Handle(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "chat.Handle")
	defer span.End()

	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	start := time.Now()

	if req == nil || strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "question must not be empty")
	}

	ctx = o.stage(ctx, StageReceived)

	releaseChat, err := o.gate.Acquire(ctx, admission.ClassChat)
	if err != nil {
		if admission.IsOverload(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeOverloaded, "service busy, retry shortly")
		}
		return nil, err
	}
	defer releaseChat()

	session, err := o.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, session.ID)
	span.SetAttributes(attribute.String("session_id", session.ID))

	// 入站翻译：统一到处理语言再检索和生成
	processingText, userLang := o.translateIn(ctx, req)
	ctx = o.stage(ctx, StageTranslatedIn)

	query := &retrieval.Query{
		Text:       processingText,
		Language:   o.cfg.ProcessingLanguage,
		Difficulty: req.Difficulty,
		SessionID:  session.ID,
		FollowUp:   req.FollowUp,
	}
	outcome := o.retriever.RetrieveAll(ctx, query, retrieval.Options{
		Bucket:       req.Bucket,
		CacheEnabled: !req.DisableCache,
	})
	ctx = o.stage(ctx, StageRetrieved)
	if outcome.AllFailed() {
		logger.Warn(ctx, "all retrieval sources failed, answering from fallback",
			"latency", outcome.Latency.String(),
		)
	}

	ranked := o.combiner.CombineAndRerank(ctx, processingText, outcome.Candidates)
	ctx = o.stage(ctx, StageReranked)

	history, summary := o.loadMemory(ctx, req, session)

	// 洞察与生成并行：洞察只是锦上添花，不拖慢主回答
	insightCh := o.fetchInsightAsync(ctx, processingText)

	gen, genErr := o.generator.Generate(ctx, &answer.Input{
		Question:   processingText,
		Language:   userLang,
		Difficulty: req.Difficulty,
		FollowUp:   req.FollowUp,
		Evidence:   ranked,
		History:    history,
		Summary:    summary,
	})
	if gen == nil {
		return nil, apperrors.Wrap(genErr, apperrors.CodeGenerationFailed, "answer generation failed")
	}
	ctx = o.stage(ctx, StageGenerated)

	// 回答就绪即视为会话活跃，后续持久化失败不影响该时刻
	if err := o.sessions.UpdateActivity(ctx, session.ID, time.Now()); err != nil {
		logger.Warn(ctx, "failed to refresh session activity", "error", err.Error())
	}

	result := &Result{
		SessionID:     session.ID,
		Title:         gen.Title,
		Answer:        gen.Answer,
		Language:      userLang,
		Fallback:      gen.Fallback,
		UsesRetrieval: !gen.Fallback && len(ranked) > 0,
	}
	if !gen.Fallback {
		result.Citations, result.ReferenceCount = o.buildCitations(ctx, ranked)
	}

	if ins := o.awaitInsight(ctx, insightCh); ins != nil {
		result.SocialTippingPoint = ins.Content
		result.QualifyingFactors = ins.Factors
	} else {
		result.SocialTippingPoint = insightFallback
	}

	o.translateOut(ctx, userLang, result)
	ctx = o.stage(ctx, StageTranslatedOut)

	o.persistTurn(ctx, session, req.Question, result)
	ctx = o.stage(ctx, StagePersisted)

	if o.summarizer != nil {
		o.summarizer.MaybeSummarize(ctx, session)
	}

	result.Latency = time.Since(start)
	o.stage(ctx, StageDone)
	span.SetAttributes(
		attribute.Bool("fallback", result.Fallback),
		attribute.Int("citations", len(result.Citations)),
	)
	return result, nil
}

// SessionHistory 返回会话元数据与最近 limit 条消息（正序）
func (o *Orchestrator) SessionHistory(ctx context.Context, sessionID string, limit int) (*entity.ChatSession, []*entity.ChatTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil, apperrors.New(apperrors.CodeInvalidParam, "session id must not be empty")
	}
	if limit <= 0 {
		limit = o.cfg.HistoryLimit
	}

	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		return nil, nil, apperrors.ErrSessionNotFound
	}

	turns, err := o.turns.ListRecent(ctx, sessionID, limit)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session turns")
	}
	return session, turns, nil
}

// resolveSession 追问必须命中已有会话，否则快速失败；新对话则建新会话
func (o *Orchestrator) resolveSession(ctx context.Context, req *Request) (*entity.ChatSession, error) {
	if req.FollowUp || req.SessionID != "" {
		session, err := o.sessions.GetByID(ctx, req.SessionID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session")
		}
		if session == nil {
			return nil, apperrors.ErrSessionNotFound
		}
		return session, nil
	}

	session := entity.NewChatSession(req.UserID, req.Language, "")
	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create session")
	}
	return session, nil
}

// translateIn 返回处理语言文本与用户语言。翻译失败时退回原文，按用户声明的语言继续。
func (o *Orchestrator) translateIn(ctx context.Context, req *Request) (text, userLang string) {
	userLang = strings.ToLower(strings.TrimSpace(req.Language))
	if userLang == "" {
		userLang = o.cfg.ProcessingLanguage
	}

	if o.translator == nil {
		return req.Question, userLang
	}

	in, err := o.translator.TranslateIn(ctx, req.Question)
	if err != nil {
		logger.Warn(ctx, "inbound translation failed, using original text", "error", err.Error())
		return req.Question, userLang
	}

	if req.Language == "" && in.DetectedLanguage != "" {
		userLang = strings.ToLower(in.DetectedLanguage)
	}
	if in.IsEnglish || strings.TrimSpace(in.TranslatedText) == "" {
		return req.Question, userLang
	}
	return in.TranslatedText, userLang
}

func (o *Orchestrator) loadMemory(ctx context.Context, req *Request, session *entity.ChatSession) ([]*entity.ChatTurn, string) {
	if !req.FollowUp {
		return nil, ""
	}
	history, err := o.turns.ListRecent(ctx, session.ID, o.cfg.HistoryLimit)
	if err != nil {
		logger.Warn(ctx, "failed to load conversation history", "error", err.Error())
		history = nil
	}
	return history, session.Summary
}

// fetchInsightAsync 在生成的同时取洞察。通道恰好收到一条消息，失败时为 nil。
func (o *Orchestrator) fetchInsightAsync(ctx context.Context, text string) <-chan *Insight {
	ch := make(chan *Insight, 1)
	if o.insight == nil {
		ch <- nil
		return ch
	}
	go func() {
		ins, err := o.insight.Fetch(ctx, text)
		if err != nil {
			logger.Warn(ctx, "insight fetch failed", "error", err.Error())
			ch <- nil
			return
		}
		ch <- ins
	}()
	return ch
}

func (o *Orchestrator) awaitInsight(ctx context.Context, ch <-chan *Insight) *Insight {
	select {
	case ins := <-ch:
		return ins
	case <-ctx.Done():
		return nil
	}
}

// buildCitations 从重排后的证据构造引用列表：按 DocID+Bucket 去重，分数折算为百分比。
// 第二个返回值为去重后的引用总数，不受 MaxCitations 截断影响。
func (o *Orchestrator) buildCitations(ctx context.Context, ranked []retrieval.Candidate) ([]Citation, int) {
	if len(ranked) == 0 {
		return nil, 0
	}

	seen := make(map[string]struct{}, len(ranked))
	citations := make([]Citation, 0, o.cfg.MaxCitations)
	for _, cand := range ranked {
		if cand.DocID == "" {
			continue
		}
		key := cand.DocID + "|" + cand.Bucket
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if len(citations) >= o.cfg.MaxCitations {
			continue
		}
		c := Citation{
			Index:  len(citations) + 1,
			DocID:  cand.DocID,
			Title:  cand.DocTitle,
			Bucket: cand.Bucket,
			Source: string(cand.Source),
			Score:  scorePercent(cand),
		}
		if o.citations != nil {
			link, err := o.citations.Resolve(ctx, cand.DocID, cand.Bucket)
			if err != nil {
				logger.Debug(ctx, "citation link resolution failed", "doc_id", cand.DocID, "error", err.Error())
			}
			c.Link = link
		}
		citations = append(citations, c)
	}
	return citations, len(seen)
}

// translateOut 把标题、正文和洞察翻译回用户语言。失败时保留处理语言原文。
func (o *Orchestrator) translateOut(ctx context.Context, userLang string, result *Result) {
	if o.translator == nil || userLang == "" || userLang == o.cfg.ProcessingLanguage {
		return
	}

	out, err := o.translator.TranslateOut(ctx, &OutboundTranslation{
		TargetLang:         userLang,
		Title:              result.Title,
		Response:           result.Answer,
		SocialTippingPoint: result.SocialTippingPoint,
	})
	if err != nil {
		logger.Warn(ctx, "outbound translation failed, returning untranslated answer",
			"target_lang", userLang,
			"error", err.Error(),
		)
		return
	}

	if strings.TrimSpace(out.Response) != "" {
		result.Answer = out.Response
	}
	if strings.TrimSpace(out.Title) != "" {
		result.Title = out.Title
	}
	if result.SocialTippingPoint != "" && strings.TrimSpace(out.SocialTippingPoint) != "" {
		result.SocialTippingPoint = out.SocialTippingPoint
	}
}

// persistTurn 持久化本轮问答。存储失败只记日志，回答照常返回。
func (o *Orchestrator) persistTurn(ctx context.Context, session *entity.ChatSession, question string, result *Result) {
	if err := o.turns.Create(ctx, entity.NewChatTurn(session.ID, entity.RoleUser, question)); err != nil {
		logger.Error(ctx, "failed to persist user turn", err)
	}
	if err := o.turns.Create(ctx, entity.NewChatTurn(session.ID, entity.RoleAssistant, result.Answer)); err != nil {
		logger.Error(ctx, "failed to persist assistant turn", err)
	}

	now := time.Now()
	// 定向更新而非整行回写：快照期间后台摘要任务可能已写入摘要列
	if err := o.sessions.RecordTurns(ctx, session.ID, 2, now, result.Title); err != nil {
		logger.Error(ctx, "failed to record session turns", err)
	}

	// 同步本地快照，供后续摘要触发判定使用
	session.TurnCount += 2
	session.LastActiveAt = now
	if session.Title == "" && result.Title != "" {
		session.Title = result.Title
	}
}

func (o *Orchestrator) stage(ctx context.Context, s Stage) context.Context {
	ctx = logger.WithContext(ctx, logger.StageKey, string(s))
	logger.Debug(ctx, "stage transition", "stage", string(s))
	return ctx
}

// scorePercent 把有效相关度折算到 0-100 并夹紧边界
func scorePercent(c retrieval.Candidate) int {
	score := c.Score
	if c.Reranked {
		score = c.RerankScore
	}
	pct := int(score*100 + 0.5)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
