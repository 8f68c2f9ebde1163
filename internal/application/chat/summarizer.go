package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/answer"
	"rag-answer-api/internal/domain/entity"
	"rag-answer-api/internal/domain/repository"
	"rag-answer-api/pkg/logger"
	"rag-answer-api/pkg/metrics"
)

const summarizeTimeout = 60 * time.Second

const summarizeSystemPrompt = `You maintain a rolling memory summary of a conversation.
Merge the previous summary with the new turns into a single concise summary.
Keep facts, user preferences and open threads. Drop chit-chat. Answer with the summary text only.`

// Summarizer 后台会话摘要器。摘要在请求返回后异步执行，
// 同一会话同一时刻至多一个摘要任务在跑。
type Summarizer struct {
	factory  answer.ChatModelFactory
	gate     *admission.Gate
	sessions repository.ChatSessionRepository
	turns    repository.ChatTurnRepository
	// every 自上次摘要起累计多少轮触发一次
	every int

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSummarizer(
	factory answer.ChatModelFactory,
	gate *admission.Gate,
	sessions repository.ChatSessionRepository,
	turns repository.ChatTurnRepository,
	every int,
) *Summarizer {
	if every <= 0 {
		every = 6
	}
	return &Summarizer{
		factory:  factory,
		gate:     gate,
		sessions: sessions,
		turns:    turns,
		every:    every,
		inflight: make(map[string]struct{}),
	}
}

// MaybeSummarize 在达到触发轮数时启动一次后台摘要。立即返回，不阻塞调用方。
func (s *Summarizer) MaybeSummarize(ctx context.Context, session *entity.ChatSession) {
	if session.TurnCount-session.SummarizedTurns < s.every {
		return
	}

	s.mu.Lock()
	if _, running := s.inflight[session.ID]; running {
		s.mu.Unlock()
		return
	}
	s.inflight[session.ID] = struct{}{}
	s.mu.Unlock()

	// 请求结束不取消摘要任务，但任务自身有硬超时
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), summarizeTimeout)
	go func() {
		defer cancel()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, session.ID)
			s.mu.Unlock()
		}()

		if err := s.summarize(detached, session.ID); err != nil {
			metrics.SummarizationTotal.WithLabelValues("error").Inc()
			logger.Warn(detached, "background summarization failed",
				"session_id", session.ID,
				"error", err.Error(),
			)
			return
		}
		metrics.SummarizationTotal.WithLabelValues("ok").Inc()
	}()
}

// summarize 重新读会话与近期轮次，把旧摘要与增量轮次并成新摘要后回写
func (s *Summarizer) summarize(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	pending := session.TurnCount - session.SummarizedTurns
	if pending < s.every {
		// 并发请求已触发过一次摘要
		return nil
	}

	turns, err := s.turns.ListRecent(ctx, sessionID, pending)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	release, err := s.gate.Acquire(ctx, admission.ClassGeneration)
	if err != nil {
		return err
	}
	defer release()

	chatModel, err := s.factory.Get(ctx, "")
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := chatModel.Generate(ctx, buildSummarizeMessages(session.Summary, turns))
	metrics.LLMCallDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("summarize", "error").Inc()
		return err
	}
	metrics.LLMCallTotal.WithLabelValues("summarize", "ok").Inc()

	summary := strings.TrimSpace(out.Content)
	if summary == "" {
		return fmt.Errorf("summarizer returned empty summary for session %s", sessionID)
	}
	return s.sessions.UpdateSummary(ctx, sessionID, summary, session.TurnCount)
}

func buildSummarizeMessages(previous string, turns []*entity.ChatTurn) []*schema.Message {
	var sb strings.Builder
	if strings.TrimSpace(previous) != "" {
		sb.WriteString("Previous summary:\n")
		sb.WriteString(strings.TrimSpace(previous))
		sb.WriteString("\n\n")
	}
	sb.WriteString("New turns:\n")
	for _, t := range turns {
		sb.WriteString(string(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return []*schema.Message{
		schema.SystemMessage(summarizeSystemPrompt),
		schema.UserMessage(sb.String()),
	}
}
