package chain

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// MaxBytes32StringLen bytes32 字符串最多31字节，保留结尾的0
const MaxBytes32StringLen = 31

// FormatBytes32String 字符串转 bytes32
func FormatBytes32String(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > MaxBytes32StringLen {
		return out, fmt.Errorf("bytes32 string must be less than 32 bytes: %q", s)
	}
	copy(out[:], s)
	return out, nil
}

// ParseBytes32String bytes32 转字符串，截止到第一个0字节
func ParseBytes32String(b [32]byte) string {
	if i := bytes.IndexByte(b[:], 0); i >= 0 {
		return string(b[:i])
	}
	return string(b[:])
}

// FormatBytes32Strings 批量转换
func FormatBytes32Strings(values []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(values))
	for _, v := range values {
		b, err := FormatBytes32String(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ParseBytes32Strings 批量转换
func ParseBytes32Strings(values [][32]byte) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, ParseBytes32String(v))
	}
	return out
}

// TruncateBytes32 截断到31字节以内，不切断多字节字符
func TruncateBytes32(s string) string {
	if len(s) <= MaxBytes32StringLen {
		return s
	}
	cut := MaxBytes32StringLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
