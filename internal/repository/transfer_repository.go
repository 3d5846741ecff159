package repository

import (
	"context"
	"fmt"

	"github.com/blues/ideamarket/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransferRepository struct {
	db *gorm.DB
}

func (r *TransferRepository) Insert(ctx context.Context, transfer *model.TransferModel) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(transfer).Error; err != nil {
		return fmt.Errorf("insert transfer %s: %w", transfer.Id, err)
	}
	return nil
}

// ListByToken 某个身份NFT的转移历史
func (r *TransferRepository) ListByToken(ctx context.Context, tokenId string) ([]model.TransferModel, error) {
	var transfers []model.TransferModel
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenId).Order("block_num ASC").Find(&transfers).Error
	return transfers, err
}
