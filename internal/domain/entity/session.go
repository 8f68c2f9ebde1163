// Package entity 定义领域实体
package entity

import (
	"time"
)

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatSession 会话：某个用户一次对话的持久化记录
type ChatSession struct {
	ID       string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID   string `json:"user_id" gorm:"type:varchar(64);index;not null"`
	Title    string `json:"title" gorm:"type:varchar(256)"`
	Language string `json:"language" gorm:"type:varchar(8);not null;default:'en'"`

	// Summary 滚动记忆摘要，由后台摘要任务维护
	Summary string `json:"summary,omitempty" gorm:"type:text"`
	// SummarizedTurns 上次摘要时的轮数，用于判定下次触发点
	SummarizedTurns int `json:"summarized_turns" gorm:"not null;default:0"`

	TurnCount    int       `json:"turn_count" gorm:"not null;default:0"`
	LastActiveAt time.Time `json:"last_active_at" gorm:"index;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func NewChatSession(userID, language, title string) *ChatSession {
	now := time.Now()
	if language == "" {
		language = "en"
	}
	return &ChatSession{
		UserID:       userID,
		Title:        title,
		Language:     language,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ChatTurn 单轮消息，会话内只追加不修改
type ChatTurn struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID string    `json:"session_id" gorm:"type:uuid;index;not null"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

func NewChatTurn(sessionID string, role Role, content string) *ChatTurn {
	return &ChatTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
