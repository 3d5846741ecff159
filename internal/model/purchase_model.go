package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseModel 购买记录，只追加
type PurchaseModel struct {
	IdeaId    int64     `json:"idea_id" gorm:"primaryKey;autoIncrement:false"`
	TxHash    string    `json:"tx_hash" gorm:"primaryKey;size:66"`
	CreatedAt time.Time `json:"created_at"`

	Buyer          string          `json:"buyer" gorm:"not null;index;size:42"`
	Seller         string          `json:"seller" gorm:"size:42"`
	Price          decimal.Decimal `json:"price" gorm:"type:numeric(78,0)"`
	MarketplaceFee decimal.Decimal `json:"marketplace_fee" gorm:"type:numeric(78,0)"`
	BlockNum       int64           `json:"block_num"`
	Timestamp      time.Time       `json:"timestamp"`
}

// TableName 自定义表名
func (PurchaseModel) TableName() string {
	return "purchase"
}
