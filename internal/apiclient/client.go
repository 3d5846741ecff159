package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError 服务端返回的错误
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound 服务端返回 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client REST 接口客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// New baseURL 形如 http://localhost:8080/api
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Code: "INVALID_RESPONSE", Message: err.Error()}
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return &env, nil
}

// Idea 挂单
type Idea struct {
	IdeaId      int64     `json:"ideaId"`
	Creator     string    `json:"creator"`
	Title       string    `json:"title"`
	Categories  []string  `json:"categories"`
	IpfsHash    string    `json:"ipfsHash"`
	Price       string    `json:"price"`
	PriceUSDC   string    `json:"priceUsdc"`
	IsPurchased bool      `json:"isPurchased"`
	Buyer       string    `json:"buyer"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListIdeas 读取挂单，最多 limit 条
func (c *Client) ListIdeas(ctx context.Context, available bool, limit int) ([]Idea, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if available {
		q.Set("available", "true")
	}
	var out struct {
		Ideas  []Idea `json:"ideas"`
		Source string `json:"source"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/ideas?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Ideas, nil
}

// Superhero 身份信息
type Superhero struct {
	Address      string   `json:"address"`
	SuperheroId  int64    `json:"superhero_id"`
	Name         string   `json:"name"`
	Bio          string   `json:"bio"`
	AvatarUrl    string   `json:"avatar_url"`
	Reputation   int64    `json:"reputation"`
	Skills       []string `json:"skills"`
	Specialities []string `json:"specialities"`
}

// GetSuperhero 数据库优先，服务端会回退到链上
func (c *Client) GetSuperhero(ctx context.Context, address string) (*Superhero, error) {
	var hero Superhero
	if _, err := c.do(ctx, http.MethodGet, "/superheroes/"+url.PathEscape(address), nil, &hero); err != nil {
		return nil, err
	}
	return &hero, nil
}

// Profile 链上资料
type Profile struct {
	SuperheroId  uint64   `json:"superheroId"`
	Name         string   `json:"name"`
	Bio          string   `json:"bio"`
	AvatarUrl    string   `json:"avatarUrl"`
	Reputation   uint64   `json:"reputation"`
	Skills       []string `json:"skills"`
	Specialities []string `json:"specialities"`
}

func (c *Client) GetSuperheroProfile(ctx context.Context, address string) (*Profile, error) {
	var profile Profile
	if _, err := c.do(ctx, http.MethodGet, "/superheroes/"+url.PathEscape(address)+"/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListSuperheroes 单页身份列表
func (c *Client) ListSuperheroes(ctx context.Context, page, limit int) ([]Superhero, *Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var heroes []Superhero
	env, err := c.do(ctx, http.MethodGet, "/superheroes?"+q.Encode(), nil, &heroes)
	if err != nil {
		return nil, nil, err
	}
	return heroes, env.Pagination, nil
}

// RecordPurchaseRequest 上报成交
type RecordPurchaseRequest struct {
	IdeaId          int64  `json:"ideaId"`
	TransactionHash string `json:"transactionHash"`
	BuyerAddress    string `json:"buyerAddress"`
}

func (c *Client) RecordPurchase(ctx context.Context, req RecordPurchaseRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/purchases/record", req, nil)
	return err
}

// Content 解密后的正文
type Content struct {
	IdeaId  int64  `json:"ideaId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RetrieveContent 持有人读取正文
func (c *Client) RetrieveContent(ctx context.Context, ideaId int64, buyer string) (*Content, error) {
	var content Content
	path := fmt.Sprintf("/ideas/%d/content", ideaId)
	if _, err := c.do(ctx, http.MethodPost, path, map[string]string{"buyerAddress": buyer}, &content); err != nil {
		return nil, err
	}
	return &content, nil
}
