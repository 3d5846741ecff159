package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/blues/ideamarket/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TeamRepository struct {
	db *gorm.DB
}

// Upsert 写入团队，已有状态不被覆盖
func (r *TeamRepository) Upsert(ctx context.Context, team *model.TeamModel) error {
	team.Leader = strings.ToLower(team.Leader)
	if team.Status == "" {
		team.Status = model.TeamStatusRecruiting
	}
	columns := []string{
		"leader", "team_name", "project_name", "required_members", "required_stake",
		"created_block", "tx_hash", "updated_at",
	}
	// 事件里没有描述和标签，只在调用方提供时覆盖
	if team.Description != "" {
		columns = append(columns, "description")
	}
	if len(team.Roles) > 0 {
		columns = append(columns, "roles")
	}
	if len(team.Tags) > 0 {
		columns = append(columns, "tags")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(team).Error
	if err != nil {
		return fmt.Errorf("upsert team %d: %w", team.TeamId, err)
	}
	return nil
}

func (r *TeamRepository) Get(ctx context.Context, teamId int64) (*model.TeamModel, error) {
	var team model.TeamModel
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamId).First(&team).Error; err != nil {
		return nil, notFound(err)
	}
	return &team, nil
}

// List 按状态分页查询
func (r *TeamRepository) List(ctx context.Context, status model.TeamStatus, page Page) ([]model.TeamModel, int64, error) {
	var teams []model.TeamModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TeamModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count teams: %w", err)
	}

	page = page.Normalize()
	if err := query.Order("team_id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&teams).Error; err != nil {
		return nil, 0, fmt.Errorf("list teams: %w", err)
	}
	return teams, total, nil
}

func (r *TeamRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.TeamModel{}).Count(&total).Error
	return total, err
}
