package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-digest/app/config"
	"video-digest/app/model"

	"resty.dev/v3"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrEmptyResponse 服务返回了空内容
var ErrEmptyResponse = errors.New("OpenAI 返回内容为空")

// Client OpenAI HTTP 客户端，提供音频转写和 JSON 对话补全
type Client struct {
	client             *resty.Client
	transcriptionModel string
	chatModel          string
	temperature        float32
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// New 根据配置创建客户端
func New(cfg *config.Config) *Client {
	baseURL := cfg.OpenAI.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(cfg.OpenAI.APIKey)
	if cfg.OpenAI.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.OpenAI.Timeout) * time.Second)
	}

	return &Client{
		client:             client,
		transcriptionModel: cfg.Transcriber.Model,
		chatModel:          cfg.Summarizer.OpenAIModel,
		temperature:        cfg.Summarizer.Temperature,
	}
}

// Transcribe 转写单个音频文件，返回未做取整的原始片段
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error) {
	var result transcriptionResponse
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetFile("file", audioPath).
		SetMultipartFormData(map[string]string{
			"model":                     c.transcriptionModel,
			"response_format":           "verbose_json",
			"timestamp_granularities[]": "segment",
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/audio/transcriptions")
	if err != nil {
		return nil, fmt.Errorf("请求音频转写失败: %w", err)
	}
	if resp.IsError() {
		return nil, responseError("音频转写", resp, &apiErr)
	}

	segments := make([]model.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, model.Segment{Start: seg.Start, Text: seg.Text})
	}
	return segments, nil
}

// CompleteJSON 发送系统提示和用户内容，要求模型返回 JSON 对象
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userContent string) (string, error) {
	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    c.temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var result chatResponse
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("请求对话补全失败: %w", err)
	}
	if resp.IsError() {
		return "", responseError("对话补全", resp, &apiErr)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}

func responseError(action string, resp *resty.Response, apiErr *apiError) error {
	if apiErr.Error.Message != "" {
		return fmt.Errorf("%s失败，状态码: %d, 错误: %s", action, resp.StatusCode(), apiErr.Error.Message)
	}
	return fmt.Errorf("%s失败，状态码: %d, 响应: %s", action, resp.StatusCode(), resp.String())
}
