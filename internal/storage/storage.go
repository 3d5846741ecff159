package storage

import (
	"context"
	"strings"

	cid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

// Pinner IPFS固定服务
type Pinner interface {
	PinJSON(ctx context.Context, name string, v interface{}) (*PinResult, error)
	PinFile(ctx context.Context, object *UploadObject) (*PinResult, error)
	Fetch(ctx context.Context, hash string) ([]byte, error)
}

type UploadObject struct {
	Prefix   string
	FileName string
	Mime     string
	Data     []byte
}

type PinResult struct {
	IpfsHash string `json:"ipfsHash"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
}

var cidPrefix = cid.Prefix{
	Version:  1,
	Codec:    uint64(mc.Raw),
	MhType:   mh.SHA2_256,
	MhLength: -1,
}

// ComputeCID 计算内容的CIDv1（raw + sha2-256）
func ComputeCID(data []byte) (string, error) {
	c, err := cidPrefix.Sum(data)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// IsCID 判断字符串是否为合法CID
func IsCID(s string) bool {
	_, err := cid.Decode(s)
	return err == nil
}

// GatewayURL 拼接网关地址
func GatewayURL(gateway, hash string) string {
	if gateway == "" {
		gateway = "https://gateway.pinata.cloud/ipfs/"
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return gateway + hash
}

// ResolveURL 把 ipfs:// 地址转换为网关地址，其他地址原样返回
func ResolveURL(gateway, uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return GatewayURL(gateway, strings.TrimPrefix(rest, "ipfs/"))
	}
	return uri
}

// HashFromURI 从 ipfs:// 或网关地址中提取哈希
func HashFromURI(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return strings.TrimPrefix(rest, "ipfs/")
	}
	if i := strings.LastIndex(uri, "/ipfs/"); i >= 0 {
		return uri[i+len("/ipfs/"):]
	}
	return uri
}
