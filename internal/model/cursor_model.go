package model

import "time"

// IndexerCursorModel 索引进度
type IndexerCursorModel struct {
	Name      string    `json:"name" gorm:"primaryKey;size:64"`
	BlockNum  int64     `json:"block_num"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 自定义表名
func (IndexerCursorModel) TableName() string {
	return "indexer_cursor"
}
