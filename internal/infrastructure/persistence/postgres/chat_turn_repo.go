package postgres

import (
	"context"
	"fmt"

	"rag-answer-api/internal/domain/entity"
)

type ChatTurnRepository struct {
	client *Client
}

func NewChatTurnRepository(client *Client) *ChatTurnRepository {
	return &ChatTurnRepository{client: client}
}

func (r *ChatTurnRepository) Create(ctx context.Context, turn *entity.ChatTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat turn: %w", err)
	}
	return nil
}

// ListRecent 取最近 limit 条后按时间正序返回，供 Prompt 直接拼接
func (r *ChatTurnRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 12
	}

	var turns []*entity.ChatTurn
	err := r.client.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	// 倒序取出再翻转为正序
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
