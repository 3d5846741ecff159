package repository

import (
	"context"
	"fmt"

	"github.com/blues/ideamarket/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventLogRepository struct {
	db *gorm.DB
}

// Insert 写入审计记录，重复投递时忽略，返回是否新写入
func (r *EventLogRepository) Insert(ctx context.Context, event *model.EventLogModel) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("insert event log %s: %w", event.Id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Exists 检查事件是否已记录
func (r *EventLogRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EventLogModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Count 按事件名统计，name 为空统计全部
func (r *EventLogRepository) Count(ctx context.Context, name string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.EventLogModel{})
	if name != "" {
		query = query.Where("event_name = ?", name)
	}
	err := query.Count(&count).Error
	return count, err
}
