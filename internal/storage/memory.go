package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryPinner 进程内固定服务，本地开发和测试使用
type MemoryPinner struct {
	mu      sync.RWMutex
	objects map[string][]byte
	gateway string

	// PinErr 非空时所有上传返回该错误
	PinErr error
}

func NewMemoryPinner(gateway string) *MemoryPinner {
	return &MemoryPinner{objects: make(map[string][]byte), gateway: gateway}
}

func (m *MemoryPinner) PinJSON(ctx context.Context, name string, v interface{}) (*PinResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return m.PinFile(ctx, &UploadObject{FileName: name + ".json", Mime: "application/json", Data: data})
}

func (m *MemoryPinner) PinFile(_ context.Context, object *UploadObject) (*PinResult, error) {
	if m.PinErr != nil {
		return nil, m.PinErr
	}
	hash, err := ComputeCID(object.Data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.objects[hash] = append([]byte(nil), object.Data...)
	m.mu.Unlock()

	return &PinResult{IpfsHash: hash, URL: GatewayURL(m.gateway, hash), Size: len(object.Data)}, nil
}

func (m *MemoryPinner) Fetch(_ context.Context, hash string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[hash]
	if !ok {
		return nil, fmt.Errorf("object %s not pinned", hash)
	}
	return data, nil
}

// Len 已固定的对象数
func (m *MemoryPinner) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
