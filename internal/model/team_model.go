package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TeamModel 团队
type TeamModel struct {
	TeamId    int64     `json:"team_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Leader          string                      `json:"leader" gorm:"not null;index;size:42"`
	TeamName        string                      `json:"team_name" gorm:"not null"`
	ProjectName     string                      `json:"project_name"`
	Description     string                      `json:"description" gorm:"type:text"`
	RequiredMembers int                         `json:"required_members"`
	RequiredStake   decimal.Decimal             `json:"required_stake" gorm:"type:numeric(78,0)"` // USDC最小单位
	Roles           datatypes.JSONSlice[string] `json:"roles"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	Status          TeamStatus                  `json:"status" gorm:"default:'recruiting';index"`

	CreatedBlock int64  `json:"created_block"`
	TxHash       string `json:"tx_hash"`
}

// TeamStatus 团队状态
type TeamStatus string

const (
	TeamStatusRecruiting TeamStatus = "recruiting" // 招募中
	TeamStatusFull       TeamStatus = "full"       // 已满员
	TeamStatusClosed     TeamStatus = "closed"     // 已关闭
)

// Valid 是否为已知状态
func (s TeamStatus) Valid() bool {
	switch s {
	case TeamStatusRecruiting, TeamStatusFull, TeamStatusClosed:
		return true
	}
	return false
}

// TableName 自定义表名
func (TeamModel) TableName() string {
	return "team"
}
