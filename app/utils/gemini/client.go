package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"video-digest/app/config"
	"video-digest/app/logger"

	"google.golang.org/genai"
)

// ErrNoAPIKey 未配置任何 API Key
var ErrNoAPIKey = errors.New("未配置 Gemini API Key")

// Client Gemini 客户端，遇到限流时轮换 API Key
type Client struct {
	apiKeys     []string
	baseURL     string
	model       string
	temperature float32
	schema      *genai.Schema
	log         *logger.Logger

	mu         sync.Mutex
	currentKey int
	clients    map[int]*genai.Client
}

// New 根据配置创建客户端，schema 可为空
func New(cfg *config.Config, schema *genai.Schema, log *logger.Logger) *Client {
	return &Client{
		apiKeys:     cfg.Gemini.APIKeys,
		baseURL:     cfg.Gemini.BaseURL,
		model:       cfg.Summarizer.GeminiModel,
		temperature: cfg.Summarizer.Temperature,
		schema:      schema,
		log:         log,
		clients:     make(map[int]*genai.Client),
	}
}

// CompleteJSON 以 JSON 输出模式生成内容
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if len(c.apiKeys) == 0 {
		return "", ErrNoAPIKey
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    c.schema,
	}

	var lastErr error
	for range c.apiKeys {
		idx, client, err := c.client(ctx)
		if err != nil {
			lastErr = fmt.Errorf("创建 Gemini 客户端失败: %w", err)
			c.rotateKey(idx)
			continue
		}

		result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(userContent), genConfig)
		if err != nil {
			if isRateLimited(err) {
				c.log.Warnf("Gemini Key %d 被限流，切换下一个", idx+1)
				c.rotateKey(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("Gemini 生成内容失败: %w", err)
		}

		text := result.Text()
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("Gemini 返回内容为空")
		}
		return text, nil
	}

	return "", fmt.Errorf("所有 Gemini API Key 均不可用: %w", lastErr)
}

func (c *Client) client(ctx context.Context) (int, *genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.currentKey
	if cl, ok := c.clients[idx]; ok {
		return idx, cl, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  c.apiKeys[idx],
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	cl, err := genai.NewClient(ctx, cc)
	if err != nil {
		return idx, nil, err
	}
	c.clients[idx] = cl
	return idx, cl, nil
}

// rotateKey 仅当当前 Key 仍是 from 时才切换
func (c *Client) rotateKey(from int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentKey == from {
		c.currentKey = (c.currentKey + 1) % len(c.apiKeys)
	}
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// SummarySchema 摘要输出的 JSON 结构
func SummarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overview": {Type: genai.TypeString},
			"key_points": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"timestamp": {Type: genai.TypeInteger},
						"text":      {Type: genai.TypeString},
					},
					Required: []string{"timestamp", "text"},
				},
			},
		},
		Required: []string{"overview", "key_points"},
	}
}
