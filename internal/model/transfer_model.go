package model

import "time"

// TransferModel NFT转移记录
type TransferModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:80"` // txHash-logIndex
	CreatedAt time.Time `json:"created_at"`

	ContractAddress string       `json:"contract_address" gorm:"size:42;index"`
	TokenId         string       `json:"token_id" gorm:"index"`
	From            string       `json:"from" gorm:"column:from_address;size:42"`
	To              string       `json:"to" gorm:"column:to_address;size:42;index"`
	TransferType    TransferType `json:"transfer_type"`
	BlockNum        int64        `json:"block_num"`
	TxHash          string       `json:"tx_hash"`
	Timestamp       time.Time    `json:"timestamp"`
}

// TransferType 转移类型
type TransferType string

const (
	TransferTypeMint     TransferType = "mint"     // 铸造
	TransferTypeBurn     TransferType = "burn"     // 销毁
	TransferTypeTransfer TransferType = "transfer" // 普通转移
)

// TableName 自定义表名
func (TransferModel) TableName() string {
	return "transfer"
}
