package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/ideamarket/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CursorRepository struct {
	db *gorm.DB
}

// Get 已处理到的区块号，没有记录时返回0
func (r *CursorRepository) Get(ctx context.Context, name string) (int64, error) {
	var cursor model.IndexerCursorModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", name, err)
	}
	return cursor.BlockNum, nil
}

// Save 保存进度
func (r *CursorRepository) Save(ctx context.Context, name string, blockNum int64) error {
	cursor := &model.IndexerCursorModel{Name: name, BlockNum: blockNum, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"block_num", "updated_at"}),
	}).Create(cursor).Error
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	return nil
}
