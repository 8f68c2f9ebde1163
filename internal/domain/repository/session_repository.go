// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"rag-answer-api/internal/domain/entity"
)

// ChatSessionRepository 会话存储接口。会话状态由外部存储持有，
// 本服务每次请求都重新读取并回写，不做跨请求缓存。
type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// GetByID 未找到时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.ChatSession, error)
	// RecordTurns 追加轮数并刷新活跃时间，标题仅在为空时写入。
	// 定向列更新：本轮快照可能已过期，整行回写会覆盖
	// 后台摘要任务或并发请求提交的字段
	RecordTurns(ctx context.Context, id string, turns int, at time.Time, title string) error
	// UpdateActivity 仅刷新最后活跃时间，空闲超时从回答就绪时刻起算
	UpdateActivity(ctx context.Context, id string, at time.Time) error
	// UpdateSummary 由后台摘要任务调用，同时记录摘要时的轮数
	UpdateSummary(ctx context.Context, id string, summary string, summarizedTurns int) error
}

// ChatTurnRepository 消息存储接口，只追加
type ChatTurnRepository interface {
	Create(ctx context.Context, turn *entity.ChatTurn) error
	// ListRecent 按时间倒序返回最近 limit 条后再正序排列
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error)
}
