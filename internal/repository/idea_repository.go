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

type IdeaRepository struct {
	db *gorm.DB
}

// IdeaFilter 挂单查询条件
type IdeaFilter struct {
	Available bool   // 只返回未售出
	Creator   string // 创建者地址
}

// Upsert 写入挂单，不覆盖由购买事件维护的价格和售出状态
func (r *IdeaRepository) Upsert(ctx context.Context, idea *model.IdeaModel) error {
	idea.Creator = strings.ToLower(idea.Creator)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "idea_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"creator", "title", "categories", "ipfs_hash",
			"created_block", "created_time", "tx_hash", "updated_at",
		}),
	}).Create(idea).Error
	if err != nil {
		return fmt.Errorf("upsert idea %d: %w", idea.IdeaId, err)
	}
	return nil
}

// MarkPurchased 记录售出，挂单行不存在时先写入占位行
func (r *IdeaRepository) MarkPurchased(ctx context.Context, ideaId int64, buyer string, price decimal.Decimal) error {
	row := &model.IdeaModel{
		IdeaId:      ideaId,
		Price:       price,
		IsPurchased: true,
		Buyer:       strings.ToLower(buyer),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idea_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "is_purchased", "buyer", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("mark idea %d purchased: %w", ideaId, err)
	}
	return nil
}

func (r *IdeaRepository) Get(ctx context.Context, ideaId int64) (*model.IdeaModel, error) {
	var idea model.IdeaModel
	if err := r.db.WithContext(ctx).Where("idea_id = ?", ideaId).First(&idea).Error; err != nil {
		return nil, notFound(err)
	}
	return &idea, nil
}

// List 分页列表，id 倒序
func (r *IdeaRepository) List(ctx context.Context, filter IdeaFilter, page Page) ([]model.IdeaModel, int64, error) {
	var ideas []model.IdeaModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.IdeaModel{})
	if filter.Available {
		query = query.Where("is_purchased = ?", false)
	}
	if filter.Creator != "" {
		query = query.Where("creator = ?", strings.ToLower(filter.Creator))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ideas: %w", err)
	}

	page = page.Normalize()
	if err := query.Order("idea_id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&ideas).Error; err != nil {
		return nil, 0, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, total, nil
}

// Counts 挂单总数与已售数
func (r *IdeaRepository) Counts(ctx context.Context) (total, purchased int64, err error) {
	db := r.db.WithContext(ctx).Model(&model.IdeaModel{})
	if err = db.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&model.IdeaModel{}).Where("is_purchased = ?", true).Count(&purchased).Error
	return total, purchased, err
}
