// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rag-answer-api/internal/domain/entity"
)

type ChatSessionRepository struct {
	client *Client
}

func NewChatSessionRepository(client *Client) *ChatSessionRepository {
	return &ChatSessionRepository{client: client}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByID")
	defer span.End()

	var session entity.ChatSession
	if err := r.client.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

// RecordTurns 只更新轮数、活跃时间与空标题，摘要列由后台摘要任务独占
func (r *ChatSessionRepository) RecordTurns(ctx context.Context, id string, turns int, at time.Time, title string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.RecordTurns")
	defer span.End()

	updates := map[string]any{
		"turn_count":     gorm.Expr("turn_count + ?", turns),
		"last_active_at": at,
	}
	if title != "" {
		updates["title"] = gorm.Expr("CASE WHEN title = '' THEN ? ELSE title END", title)
	}

	err := r.client.db.WithContext(ctx).
		Model(&entity.ChatSession{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record session turns: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.UpdateActivity")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Model(&entity.ChatSession{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) UpdateSummary(ctx context.Context, id string, summary string, summarizedTurns int) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.UpdateSummary")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Model(&entity.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"summary":          summary,
			"summarized_turns": summarizedTurns,
		}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update session summary: %w", err)
	}
	return nil
}
