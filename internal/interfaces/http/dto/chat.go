package dto

import (
	"time"

	"rag-answer-api/internal/application/chat"
	"rag-answer-api/internal/domain/entity"
)

// ChatRequest 问答请求
type ChatRequest struct {
	Question   string `json:"question" binding:"required,max=4096"`
	SessionID  string `json:"session_id,omitempty"`
	Language   string `json:"language,omitempty"`
	Difficulty string `json:"difficulty,omitempty" binding:"omitempty,oneof=simple normal expert"`
	Bucket     string `json:"bucket,omitempty"`
	FollowUp   bool   `json:"follow_up,omitempty"`
	NoCache    bool   `json:"no_cache,omitempty"`
}

// ChatResponse 问答响应
type ChatResponse struct {
	SessionID          string         `json:"session_id"`
	Title              string         `json:"title"`
	Answer             string         `json:"answer"`
	Language           string         `json:"language"`
	Citations          []chat.Citation `json:"citations,omitempty"`
	ReferenceCount     int            `json:"reference_count"`
	UsesRetrieval      bool           `json:"uses_retrieval"`
	SocialTippingPoint string         `json:"social_tipping_point"`
	QualifyingFactors  []string       `json:"qualifying_factors,omitempty"`
	Fallback           bool           `json:"fallback"`
	LatencyMs          int64          `json:"latency_ms"`
}

// SessionResponse 会话历史响应
type SessionResponse struct {
	SessionID    string        `json:"session_id"`
	Title        string        `json:"title"`
	Language     string        `json:"language"`
	TurnCount    int           `json:"turn_count"`
	LastActiveAt time.Time     `json:"last_active_at"`
	Turns        []TurnPayload `json:"turns"`
}

// TurnPayload 单条历史消息
type TurnPayload struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FromSession 把会话与历史消息转换为响应体
func FromSession(session *entity.ChatSession, turns []*entity.ChatTurn) *SessionResponse {
	payload := make([]TurnPayload, 0, len(turns))
	for _, t := range turns {
		payload = append(payload, TurnPayload{
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}
	return &SessionResponse{
		SessionID:    session.ID,
		Title:        session.Title,
		Language:     session.Language,
		TurnCount:    session.TurnCount,
		LastActiveAt: session.LastActiveAt,
		Turns:        payload,
	}
}

// FromResult 把编排结果转换为响应体
func FromResult(r *chat.Result) *ChatResponse {
	return &ChatResponse{
		SessionID:          r.SessionID,
		Title:              r.Title,
		Answer:             r.Answer,
		Language:           r.Language,
		Citations:          r.Citations,
		ReferenceCount:     r.ReferenceCount,
		UsesRetrieval:      r.UsesRetrieval,
		SocialTippingPoint: r.SocialTippingPoint,
		QualifyingFactors:  r.QualifyingFactors,
		Fallback:           r.Fallback,
		LatencyMs:          r.Latency.Milliseconds(),
	}
}
