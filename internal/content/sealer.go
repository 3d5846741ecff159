package content

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoKey 未配置内容加密密钥
var ErrNoKey = errors.New("content encryption key is not configured")

// Sealer 创意正文的 AES-256-GCM 加解密
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer hexKey 为64位hex（32字节）
func NewSealer(hexKey string) (*Sealer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrNoKey
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid content key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid content key length %d, want 32 bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal 加密，输出 nonce||ciphertext 的hex编码
func (s *Sealer) Seal(plaintext []byte, ideaRef string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, plaintext, []byte(ideaRef))
	return hex.EncodeToString(out), nil
}

// Open 解密 Seal 的输出
func (s *Sealer) Open(sealed string, ideaRef string) ([]byte, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("invalid sealed content: %w", err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return nil, errors.New("invalid sealed content: too short")
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(ideaRef))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content: %w", err)
	}
	return plain, nil
}
