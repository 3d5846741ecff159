package model

import (
	"time"

	"gorm.io/datatypes"
)

// SuperheroModel 超级英雄身份（链上身份NFT的只读缓存）
type SuperheroModel struct {
	Address   string    `json:"address" gorm:"primaryKey;size:42"` // 小写地址
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SuperheroId  int64                       `json:"superhero_id" gorm:"index"`
	Name         string                      `json:"name" gorm:"not null;index"`
	Bio          string                      `json:"bio" gorm:"type:text"`
	AvatarUrl    string                      `json:"avatar_url"`
	Reputation   int64                       `json:"reputation" gorm:"default:0"`
	Skills       datatypes.JSONSlice[string] `json:"skills"`
	Specialities datatypes.JSONSlice[string] `json:"specialities"`
	Flagged      bool                        `json:"flagged" gorm:"default:false"`

	// 区块链信息
	CreatedBlock int64     `json:"created_block"`
	CreatedTime  time.Time `json:"created_time"`
	TxHash       string    `json:"tx_hash"`
}

// TableName 自定义表名
func (SuperheroModel) TableName() string {
	return "superhero"
}
