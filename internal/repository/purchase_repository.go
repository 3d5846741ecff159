package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/blues/ideamarket/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseRepository struct {
	db *gorm.DB
}

// Create 追加购买记录，(idea_id, tx_hash) 已存在时忽略，返回是否新写入
func (r *PurchaseRepository) Create(ctx context.Context, purchase *model.PurchaseModel) (bool, error) {
	purchase.Buyer = strings.ToLower(purchase.Buyer)
	purchase.Seller = strings.ToLower(purchase.Seller)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(purchase)
	if result.Error != nil {
		return false, fmt.Errorf("create purchase %d/%s: %w", purchase.IdeaId, purchase.TxHash, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List 按买家分页查询，最新的在前
func (r *PurchaseRepository) List(ctx context.Context, buyer string, page Page) ([]model.PurchaseModel, int64, error) {
	var purchases []model.PurchaseModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PurchaseModel{})
	if buyer != "" {
		query = query.Where("buyer = ?", strings.ToLower(buyer))
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	page = page.Normalize()
	err := query.Order("block_num DESC").Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).Find(&purchases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, total, nil
}

// Volume 成交总额（USDC最小单位）
func (r *PurchaseRepository) Volume(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.PurchaseModel{}).Select("SUM(price)").Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum purchase volume: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
