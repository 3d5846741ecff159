package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/logger"
)

// cidMetaKey S3兼容固定服务在对象元数据中返回的CID
const cidMetaKey = "Cid"

type s3Pinner struct {
	uploader   *s3manager.Uploader
	client     s3iface.S3API
	bucket     string
	gateway    string
	httpClient *http.Client
}

// NewS3Pinner 基于S3协议的IPFS固定服务（Filebase 等）
func NewS3Pinner(cfg config.IPFSConfig) (Pinner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}

	return &s3Pinner{
		uploader:   s3manager.NewUploader(sess),
		client:     s3.New(sess),
		bucket:     cfg.Bucket,
		gateway:    cfg.GatewayURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *s3Pinner) PinJSON(ctx context.Context, name string, v interface{}) (*PinResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return p.PinFile(ctx, &UploadObject{Prefix: "metadata", FileName: name + ".json", Mime: "application/json", Data: data})
}

func (p *s3Pinner) PinFile(ctx context.Context, object *UploadObject) (*PinResult, error) {
	localCID, err := ComputeCID(object.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cid: %w", err)
	}

	key := localCID
	if object.Prefix != "" {
		key = object.Prefix + "/" + localCID
	}

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(object.Data),
		ContentType: aws.String(object.Mime),
		Metadata:    map[string]*string{"filename": aws.String(object.FileName)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to IPFS: %w, bucket %s, key %s", err, p.bucket, key)
	}

	hash := localCID
	head, err := p.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.Warn("Failed to read pinned cid for %s, using local cid: %v", key, err)
	} else if remote := aws.StringValue(head.Metadata[cidMetaKey]); remote != "" {
		hash = remote
	}

	return &PinResult{IpfsHash: hash, URL: GatewayURL(p.gateway, hash), Size: len(object.Data)}, nil
}

// Fetch 通过HTTP网关读取内容
func (p *s3Pinner) Fetch(ctx context.Context, hash string) ([]byte, error) {
	return FetchFromGateway(ctx, p.httpClient, p.gateway, hash)
}

// FetchFromGateway 从网关下载内容
func FetchFromGateway(ctx context.Context, client *http.Client, gateway, hash string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GatewayURL(gateway, hash), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from gateway: %w", hash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s from gateway: status %d", hash, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}
