package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// EventLogModel 链上事件审计记录，写入后不再修改
type EventLogModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:80"` // txHash-logIndex
	CreatedAt time.Time `json:"created_at"`

	ContractAddress string         `json:"contract_address" gorm:"not null;index"`
	ContractName    string         `json:"contract_name" gorm:"not null"`
	EventName       string         `json:"event_name" gorm:"not null;index"`
	TxHash          string         `json:"tx_hash" gorm:"not null"`
	BlockNum        int64          `json:"block_num" gorm:"not null;index"`
	LogIndex        int64          `json:"log_index"`
	Args            datatypes.JSON `json:"args"`
	Timestamp       time.Time      `json:"timestamp"`
}

// TableName 自定义表名
func (EventLogModel) TableName() string {
	return "event_log"
}

// EventLogId 事件的自然键
func EventLogId(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s-%d", txHash, logIndex)
}
