package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 持久化适配器，聚合各类记录的读写
type Store struct {
	db *gorm.DB

	Superheroes *SuperheroRepository
	Ideas       *IdeaRepository
	Teams       *TeamRepository
	Purchases   *PurchaseRepository
	Events      *EventLogRepository
	Transfers   *TransferRepository
	Cursors     *CursorRepository
}

// NewStore 创建持久化适配器
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Superheroes: &SuperheroRepository{db: db},
		Ideas:       &IdeaRepository{db: db},
		Teams:       &TeamRepository{db: db},
		Purchases:   &PurchaseRepository{db: db},
		Events:      &EventLogRepository{db: db},
		Transfers:   &TransferRepository{db: db},
		Cursors:     &CursorRepository{db: db},
	}
}

// DB 底层连接
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction 在同一事务中执行 fn
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Page 分页参数
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize 修正非法分页参数
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset 查询偏移
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
