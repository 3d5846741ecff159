package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// IdeaModel 创意挂单
type IdeaModel struct {
	IdeaId    int64     `json:"idea_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Creator     string                      `json:"creator" gorm:"not null;index;size:42"`
	Title       string                      `json:"title" gorm:"not null"`
	Categories  datatypes.JSONSlice[string] `json:"categories"`
	IpfsHash    string                      `json:"ipfs_hash"`
	Price       decimal.Decimal             `json:"price" gorm:"type:numeric(78,0)"` // USDC最小单位，6位小数
	RatingTotal int64                       `json:"rating_total" gorm:"default:0"`
	NumRaters   int64                       `json:"num_raters" gorm:"default:0"`
	IsPurchased bool                        `json:"is_purchased" gorm:"default:false;index"`
	Buyer       string                      `json:"buyer" gorm:"size:42"`

	// 区块链信息
	CreatedBlock int64     `json:"created_block"`
	CreatedTime  time.Time `json:"created_time"`
	TxHash       string    `json:"tx_hash"`
}

// TableName 自定义表名
func (IdeaModel) TableName() string {
	return "idea"
}
