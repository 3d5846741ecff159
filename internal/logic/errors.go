package logic

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound 记录不存在（数据库和链上都没有）
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists 记录已存在
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotOwner 调用者不是NFT持有人
	ErrNotOwner = errors.New("not the owner")
)

// ValidationError 输入校验失败，在任何副作用之前返回
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// IsAddress 地址格式校验
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsTxHash 交易哈希格式校验
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

func requireAddress(field, s string) error {
	if !IsAddress(s) {
		return invalid(field, "must match ^0x[a-fA-F0-9]{40}$")
	}
	return nil
}
