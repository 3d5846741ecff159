package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/blues/ideamarket/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SuperheroRepository struct {
	db *gorm.DB
}

// Upsert 按地址写入或更新超级英雄，空的头像和标签不覆盖已有值
func (r *SuperheroRepository) Upsert(ctx context.Context, hero *model.SuperheroModel) error {
	hero.Address = strings.ToLower(hero.Address)

	columns := []string{"superhero_id", "name", "bio", "created_block", "created_time", "tx_hash", "updated_at"}
	if hero.AvatarUrl != "" {
		columns = append(columns, "avatar_url")
	}
	if len(hero.Skills) > 0 {
		columns = append(columns, "skills")
	}
	if len(hero.Specialities) > 0 {
		columns = append(columns, "specialities")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(hero).Error
	if err != nil {
		return fmt.Errorf("upsert superhero %s: %w", hero.Address, err)
	}
	return nil
}

// GetByAddress 按地址查询
func (r *SuperheroRepository) GetByAddress(ctx context.Context, address string) (*model.SuperheroModel, error) {
	var hero model.SuperheroModel
	err := r.db.WithContext(ctx).Where("address = ?", strings.ToLower(address)).First(&hero).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &hero, nil
}

// ExistsByName 名称是否已被使用
func (r *SuperheroRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.SuperheroModel{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 分页列表，最新的在前
func (r *SuperheroRepository) List(ctx context.Context, page Page) ([]model.SuperheroModel, int64, error) {
	var heroes []model.SuperheroModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.SuperheroModel{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count superheroes: %w", err)
	}

	page = page.Normalize()
	err := query.Order("created_block DESC").Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).Find(&heroes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list superheroes: %w", err)
	}
	return heroes, total, nil
}

func (r *SuperheroRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.SuperheroModel{}).Count(&total).Error
	return total, err
}
