package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/answer"
	"rag-answer-api/internal/application/rerank"
	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
	"rag-answer-api/internal/domain/entity"
	apperrors "rag-answer-api/pkg/errors"
)

// ---- fakes ----

type fakeEmbedder struct{ calls int32 }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	return []float32{0.1, 0.2}, nil
}

type fakeVectorSearcher struct{ candidates []retrieval.Candidate }

func (f *fakeVectorSearcher) Search(ctx context.Context, q *retrieval.VectorQuery) ([]retrieval.Candidate, error) {
	return f.candidates, nil
}

type fakeGraphSearcher struct{ candidates []retrieval.Candidate }

func (f *fakeGraphSearcher) Search(ctx context.Context, q *retrieval.GraphQuery) ([]retrieval.Candidate, error) {
	return f.candidates, nil
}

type fakeChatModel struct {
	reply string
	err   error
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeFactory struct{ model model.BaseChatModel }

func (f *fakeFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.model, nil
}

type fakeTranslator struct {
	in     *InboundTranslation
	inErr  error
	out    *OutboundResult
	outErr error
}

func (f *fakeTranslator) TranslateIn(ctx context.Context, text string) (*InboundTranslation, error) {
	if f.inErr != nil {
		return nil, f.inErr
	}
	if f.in != nil {
		return f.in, nil
	}
	return &InboundTranslation{TranslatedText: text, IsEnglish: true, DetectedLanguage: "en"}, nil
}

func (f *fakeTranslator) TranslateOut(ctx context.Context, req *OutboundTranslation) (*OutboundResult, error) {
	if f.outErr != nil {
		return nil, f.outErr
	}
	if f.out != nil {
		return f.out, nil
	}
	return &OutboundResult{
		Title:              "übersetzt: " + req.Title,
		Response:           "übersetzt: " + req.Response,
		SocialTippingPoint: "übersetzt: " + req.SocialTippingPoint,
	}, nil
}

type fakeInsight struct {
	insight *Insight
	err     error
}

func (f *fakeInsight) Fetch(ctx context.Context, text string) (*Insight, error) {
	return f.insight, f.err
}

type fakeResolver struct{ links map[string]string }

func (f *fakeResolver) Resolve(ctx context.Context, docID, bucket string) (string, error) {
	if f.links == nil {
		return "", errors.New("resolver down")
	}
	return f.links[docID], nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.ChatSession
	seq      int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*entity.ChatSession{}}
}

func (r *memSessionRepo) Create(ctx context.Context, s *entity.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("session-%d", r.seq)
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// put 测试用播种：整行覆盖存储中的会话
func (r *memSessionRepo) put(s *entity.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
}

func (r *memSessionRepo) RecordTurns(ctx context.Context, id string, turns int, at time.Time, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.TurnCount += turns
		s.LastActiveAt = at
		if s.Title == "" && title != "" {
			s.Title = title
		}
	}
	return nil
}

func (r *memSessionRepo) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActiveAt = at
	}
	return nil
}

func (r *memSessionRepo) UpdateSummary(ctx context.Context, id, summary string, summarizedTurns int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Summary = summary
		s.SummarizedTurns = summarizedTurns
	}
	return nil
}

type memTurnRepo struct {
	mu    sync.Mutex
	turns []*entity.ChatTurn
}

func (r *memTurnRepo) Create(ctx context.Context, turn *entity.ChatTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *turn
	r.turns = append(r.turns, &cp)
	return nil
}

func (r *memTurnRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ChatTurn
	for _, turn := range r.turns {
		if turn.SessionID == sessionID {
			out = append(out, turn)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ---- fixture ----

type fixture struct {
	orch     *Orchestrator
	sessions *memSessionRepo
	turns    *memTurnRepo
	embedder *fakeEmbedder
}

type fixtureOpts struct {
	candidates []retrieval.Candidate
	modelReply string
	modelErr   error
	translator Translator
	insight    InsightProvider
	resolver   CitationResolver
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	gate := admission.NewGate(&config.AdmissionConfig{
		AcquireTimeout: time.Second,
		Chat:           8, Generation: 8, Vector: 8, Graph: 8, Translate: 8, Insight: 8,
	})

	embedder := &fakeEmbedder{}
	retriever := retrieval.NewRetriever(
		embedder,
		&fakeVectorSearcher{candidates: opts.candidates},
		&fakeVectorSearcher{},
		&fakeGraphSearcher{},
		gate,
		retrieval.NewCache[[]float32](0, 0),
		retrieval.NewCache[*retrieval.Outcome](0, 0),
		config.RetrievalConfig{},
	)

	reply := opts.modelReply
	if reply == "" {
		reply = `{"title": "Answer Title", "answer": "Generated answer [1]."}`
	}
	generator := answer.NewGenerator(
		&fakeFactory{model: &fakeChatModel{reply: reply, err: opts.modelErr}},
		gate,
		config.AnswerConfig{},
	)

	sessions := newMemSessionRepo()
	turns := &memTurnRepo{}

	orch := NewOrchestrator(
		gate,
		opts.translator,
		retriever,
		rerank.NewCombiner(nil, 10),
		generator,
		opts.insight,
		opts.resolver,
		sessions,
		turns,
		nil,
		config.AnswerConfig{MaxCitations: 3},
	)
	return &fixture{orch: orch, sessions: sessions, turns: turns, embedder: embedder}
}

func chunkCandidates(n int) []retrieval.Candidate {
	out := make([]retrieval.Candidate, n)
	for i := range out {
		out[i] = retrieval.Candidate{
			Source:   retrieval.SourceChunk,
			Text:     fmt.Sprintf("evidence %d", i),
			DocID:    fmt.Sprintf("doc-%d", i),
			DocTitle: fmt.Sprintf("Document %d", i),
			Bucket:   "main",
			Score:    1 - float64(i)*0.05,
		}
	}
	return out
}

// ---- tests ----

func TestHandleHealthyPath(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(4),
		insight: &fakeInsight{insight: &Insight{
			Content: "Tipping point insight.",
			Factors: []string{"f1", "f2", "f3", "f4", "f5"},
		}},
		resolver: &fakeResolver{links: map[string]string{"doc-0": "https://docs/doc-0"}},
	})

	res, err := f.orch.Handle(context.Background(), &Request{
		UserID:   "u1",
		Question: "What are tipping points?",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Answer Title", res.Title)
	assert.Equal(t, "Generated answer [1].", res.Answer)
	assert.False(t, res.Fallback)
	assert.True(t, res.UsesRetrieval)

	// MaxCitations=3，但引用总数按去重后的全量计
	assert.Len(t, res.Citations, 3)
	assert.Equal(t, 4, res.ReferenceCount)
	assert.Equal(t, 1, res.Citations[0].Index)
	assert.Equal(t, "https://docs/doc-0", res.Citations[0].Link)

	assert.Equal(t, "Tipping point insight.", res.SocialTippingPoint)
	assert.Len(t, res.QualifyingFactors, 5)

	// 用户问题与回答各存一条
	require.Len(t, f.turns.turns, 2)
	assert.Equal(t, entity.RoleUser, f.turns.turns[0].Role)
	assert.Equal(t, "What are tipping points?", f.turns.turns[0].Content)
	assert.Equal(t, entity.RoleAssistant, f.turns.turns[1].Role)

	session, err := f.sessions.GetByID(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, session.TurnCount)
	assert.Equal(t, "Answer Title", session.Title)
}

func TestHandleGenerationFailureDegrades(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(2),
		modelErr:   errors.New("llm down"),
	})

	res, err := f.orch.Handle(context.Background(), &Request{
		UserID:   "u1",
		Question: "Q",
		Language: "zh",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Fallback)
	assert.Equal(t, answer.GenerationFallback("zh"), res.Answer)
	// 降级回答不带引用、不算使用检索
	assert.Empty(t, res.Citations)
	assert.Zero(t, res.ReferenceCount)
	assert.False(t, res.UsesRetrieval)
	// 洞察缺席时使用固定替代文案
	assert.Equal(t, insightFallback, res.SocialTippingPoint)
	assert.Empty(t, res.QualifyingFactors)
	// 降级回答照常入库
	assert.Len(t, f.turns.turns, 2)
}

func TestHandleFollowUpMissingSession(t *testing.T) {
	f := newFixture(t, fixtureOpts{candidates: chunkCandidates(1)})

	res, err := f.orch.Handle(context.Background(), &Request{
		UserID:    "u1",
		SessionID: "no-such-session",
		Question:  "And then?",
		FollowUp:  true,
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	// 会话校验失败即返回，不触发任何检索
	assert.Zero(t, atomic.LoadInt32(&f.embedder.calls))
	assert.Empty(t, f.turns.turns)
}

func TestHandleFollowUpUsesExistingSession(t *testing.T) {
	f := newFixture(t, fixtureOpts{candidates: chunkCandidates(1)})

	session := entity.NewChatSession("u1", "en", "Earlier chat")
	session.Summary = "We discussed climate."
	require.NoError(t, f.sessions.Create(context.Background(), session))

	res, err := f.orch.Handle(context.Background(), &Request{
		UserID:    "u1",
		SessionID: session.ID,
		Question:  "And what about oceans?",
		FollowUp:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, session.ID, res.SessionID)

	got, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
	// 已有标题不被覆盖
	assert.Equal(t, "Earlier chat", got.Title)
}

func TestHandleEmptyQuestion(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res, err := f.orch.Handle(context.Background(), &Request{UserID: "u1", Question: "   "})
	require.Error(t, err)
	assert.Nil(t, res)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
}

func TestHandleTranslatesOutbound(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(1),
		translator: &fakeTranslator{
			in: &InboundTranslation{TranslatedText: "translated question", DetectedLanguage: "de", IsEnglish: false},
		},
	})

	res, err := f.orch.Handle(context.Background(), &Request{UserID: "u1", Question: "Was ist das?"})
	require.NoError(t, err)

	assert.Equal(t, "de", res.Language)
	assert.Equal(t, "übersetzt: Generated answer [1].", res.Answer)
	assert.Equal(t, "übersetzt: Answer Title", res.Title)
	// 洞察替代文案同样翻译
	assert.Equal(t, "übersetzt: "+insightFallback, res.SocialTippingPoint)

	// 入库的用户消息保留原文
	assert.Equal(t, "Was ist das?", f.turns.turns[0].Content)
}

func TestHandleOutboundTranslationFailureKeepsOriginals(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(1),
		translator: &fakeTranslator{
			in:     &InboundTranslation{TranslatedText: "translated question", DetectedLanguage: "de"},
			outErr: errors.New("translator down"),
		},
	})

	res, err := f.orch.Handle(context.Background(), &Request{UserID: "u1", Question: "Was ist das?"})
	require.NoError(t, err)
	assert.Equal(t, "Generated answer [1].", res.Answer)
	assert.Equal(t, "Answer Title", res.Title)
}

func TestHandleInboundTranslationFailureFallsBackToOriginal(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(1),
		translator: &fakeTranslator{inErr: errors.New("translator down")},
	})

	res, err := f.orch.Handle(context.Background(), &Request{UserID: "u1", Question: "Plain question"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Fallback)
}

func TestHandleInsightErrorUsesFallbackText(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		candidates: chunkCandidates(1),
		insight:    &fakeInsight{err: errors.New("insight down")},
	})

	res, err := f.orch.Handle(context.Background(), &Request{UserID: "u1", Question: "Q"})
	require.NoError(t, err)
	assert.Equal(t, insightFallback, res.SocialTippingPoint)
	assert.Empty(t, res.QualifyingFactors)
}

func TestPersistTurnPreservesBackgroundSummary(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	session := entity.NewChatSession("u1", "en", "")
	session.TurnCount = 4
	require.NoError(t, f.sessions.Create(ctx, session))

	// 请求开始时读到的快照
	snapshot, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)

	// 快照之后：后台摘要任务提交了摘要，另一并发请求追加了两轮
	require.NoError(t, f.sessions.UpdateSummary(ctx, session.ID, "rolling summary", 6))
	require.NoError(t, f.sessions.RecordTurns(ctx, session.ID, 2, time.Now(), ""))

	f.orch.persistTurn(ctx, snapshot, "question", &Result{Answer: "answer", Title: "First Title"})

	got, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "rolling summary", got.Summary)
	assert.Equal(t, 6, got.SummarizedTurns)
	// 4 轮 + 并发请求 2 轮 + 本轮 2 轮，均不丢失
	assert.Equal(t, 8, got.TurnCount)
	assert.Equal(t, "First Title", got.Title)

	// 已有标题不被后续轮次覆盖
	f.orch.persistTurn(ctx, snapshot, "question 2", &Result{Answer: "answer 2", Title: "Other Title"})
	got, err = f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "First Title", got.Title)
	assert.Equal(t, 10, got.TurnCount)
}

func TestSessionHistory(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	session := entity.NewChatSession("u1", "en", "History chat")
	require.NoError(t, f.sessions.Create(context.Background(), session))
	for i := 0; i < 4; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		require.NoError(t, f.turns.Create(context.Background(), entity.NewChatTurn(session.ID, role, fmt.Sprintf("turn %d", i))))
	}

	t.Run("returns session and turns", func(t *testing.T) {
		got, turns, err := f.orch.SessionHistory(context.Background(), session.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, "History chat", got.Title)
		require.Len(t, turns, 4)
		assert.Equal(t, "turn 0", turns[0].Content)
	})

	t.Run("limit caps turns", func(t *testing.T) {
		_, turns, err := f.orch.SessionHistory(context.Background(), session.ID, 2)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "turn 2", turns[0].Content)
	})

	t.Run("missing session", func(t *testing.T) {
		_, _, err := f.orch.SessionHistory(context.Background(), "nope", 10)
		assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		_, _, err := f.orch.SessionHistory(context.Background(), "  ", 10)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
	})
}

func TestBuildCitationsDedupe(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	ranked := []retrieval.Candidate{
		{Source: retrieval.SourceChunk, DocID: "doc-a", Bucket: "b1", DocTitle: "A", Score: 0.9},
		{Source: retrieval.SourceSummary, DocID: "doc-a", Bucket: "b1", DocTitle: "A", Score: 0.8},
		{Source: retrieval.SourceChunk, DocID: "doc-a", Bucket: "b2", DocTitle: "A", Score: 0.7},
		{Source: retrieval.SourceGraph, DocID: "", Score: 0.6},
		{Source: retrieval.SourceChunk, DocID: "doc-b", Bucket: "b1", DocTitle: "B", Score: 0.5},
	}

	citations, total := f.orch.buildCitations(context.Background(), ranked)
	// 同 DocID 不同 bucket 算两条，空 DocID 不计
	require.Len(t, citations, 3)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int{1, 2, 3}, []int{citations[0].Index, citations[1].Index, citations[2].Index})
	assert.Equal(t, "doc-a", citations[0].DocID)
	assert.Equal(t, "b1", citations[0].Bucket)
	assert.Equal(t, "doc-a", citations[1].DocID)
	assert.Equal(t, "b2", citations[1].Bucket)
	assert.Equal(t, "doc-b", citations[2].DocID)
}

func TestScorePercent(t *testing.T) {
	assert.Equal(t, 90, scorePercent(retrieval.Candidate{Score: 0.9}))
	assert.Equal(t, 73, scorePercent(retrieval.Candidate{Score: 0.2, RerankScore: 0.725, Reranked: true}))
	assert.Equal(t, 0, scorePercent(retrieval.Candidate{Score: -0.4}))
	assert.Equal(t, 100, scorePercent(retrieval.Candidate{Score: 1.7}))
}
