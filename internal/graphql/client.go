package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured 未配置 GraphQL 地址
var ErrNotConfigured = errors.New("graphql endpoint not configured")

// Client 索引服务 GraphQL 客户端
type Client struct {
	url  string
	http *http.Client
}

// NewClient url 为空时所有查询返回 ErrNotConfigured
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{url: strings.TrimSpace(url), http: httpClient}
}

// Configured 是否配置了地址
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query 执行查询并把 data 解码到 out
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graphql request failed: %s %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	return json.Unmarshal(result.Data, out)
}

// BigInt 大整数标量，兼容字符串和数字两种编码
type BigInt string

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*b = BigInt(s)
	return nil
}

func (b BigInt) String() string {
	return string(b)
}

// Idea 索引服务中的挂单
type Idea struct {
	Id              string   `json:"id"`
	IdeaId          BigInt   `json:"ideaId"`
	Creator         string   `json:"creator"`
	Title           string   `json:"title"`
	Categories      []string `json:"categories"`
	IpfsHash        string   `json:"ipfsHash"`
	Price           BigInt   `json:"price"`
	RatingTotal     BigInt   `json:"ratingTotal"`
	NumRaters       BigInt   `json:"numRaters"`
	IsPurchased     bool     `json:"isPurchased"`
	CreatedAt       BigInt   `json:"createdAt"`
	TransactionHash string   `json:"transactionHash"`
	BlockNumber     BigInt   `json:"blockNumber"`
}

const ideasQuery = `query GetIdeas($limit: Int) {
  ideas(limit: $limit, orderBy: "createdAt", orderDirection: "desc") {
    items {
      id
      ideaId
      creator
      title
      categories
      ipfsHash
      price
      ratingTotal
      numRaters
      isPurchased
      createdAt
      transactionHash
      blockNumber
    }
  }
}`

// Ideas 最新的 limit 条挂单
func (c *Client) Ideas(ctx context.Context, limit int) ([]Idea, error) {
	var data struct {
		Ideas struct {
			Items []Idea `json:"items"`
		} `json:"ideas"`
	}
	if err := c.Query(ctx, ideasQuery, map[string]interface{}{"limit": limit}, &data); err != nil {
		return nil, err
	}
	return data.Ideas.Items, nil
}
