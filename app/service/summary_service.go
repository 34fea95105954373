package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"video-digest/app/config"
	"video-digest/app/logger"
	"video-digest/app/model"

	"go.uber.org/zap"
)

// segmentOverhead 每个片段在提示词中时间戳格式的预估长度
const segmentOverhead = 20

const summaryPrompt = `You are a video summarization assistant. You receive a transcript of a YouTube video with timestamps.

Your task is to produce a structured JSON summary with:
1. An "overview" field: 2-3 sentences summarizing the video's main topic and purpose.
2. A "key_points" array: Each key point has:
   - "timestamp": The start time in seconds (integer) of the most relevant moment for this point. Use the timestamps from the transcript.
   - "text": A concise description of the key point (1-2 sentences).

Return ONLY valid JSON, no markdown formatting, no code fences. Example format:
{
  "overview": "This video discusses...",
  "key_points": [
    {"timestamp": 0, "text": "Introduction to the topic..."},
    {"timestamp": 125, "text": "The speaker explains..."}
  ]
}

Aim for 5-10 key points that capture the most important ideas, decisions, or insights from the video. Each key point should reference the timestamp where that topic is discussed.`

const combinePrompt = `You are given summaries of different parts of the same video.
Combine them into a single cohesive summary with the same JSON format:
- "overview": 2-3 sentences covering the entire video
- "key_points": 5-10 most important points across all chunks, preserving their original timestamps (in seconds)

Return ONLY valid JSON, no markdown, no code fences.`

// JSONCompleter 结构化输出的大模型能力
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// SummaryService 生成带时间戳的摘要，超长字幕分块后合并
type SummaryService struct {
	completer JSONCompleter
	maxChars  int
	log       *logger.Logger
}

// NewSummaryService 创建摘要服务
func NewSummaryService(cfg config.SummarizerConfig, completer JSONCompleter, log *logger.Logger) *SummaryService {
	return &SummaryService{
		completer: completer,
		maxChars:  cfg.MaxChars,
		log:       log,
	}
}

// Summarize 文本不超过预算时单次调用，否则分块摘要后再合并一次
func (s *SummaryService) Summarize(ctx context.Context, segments model.Segments, text string) (*model.Summary, error) {
	if utf8.RuneCountInString(text) <= s.maxChars {
		return s.summarizeChunk(ctx, segments)
	}

	chunks := SplitSegments(segments, s.maxChars)
	s.log.Info("字幕超出长度预算，分块摘要", zap.Int("chunks", len(chunks)), zap.Int("segments", len(segments)))

	partials := make([]*model.Summary, 0, len(chunks))
	for i, chunk := range chunks {
		s.log.Debugf("摘要第 %d/%d 块", i+1, len(chunks))
		summary, err := s.summarizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("第 %d/%d 块摘要失败: %w", i+1, len(chunks), err)
		}
		partials = append(partials, summary)
	}

	return s.combine(ctx, partials)
}

func (s *SummaryService) summarizeChunk(ctx context.Context, segments model.Segments) (*model.Summary, error) {
	content, err := s.completer.CompleteJSON(ctx, summaryPrompt, "Here is the timestamped transcript:\n\n"+FormatTranscript(segments))
	if err != nil {
		return nil, err
	}
	return ParseSummary(content)
}

func (s *SummaryService) combine(ctx context.Context, partials []*model.Summary) (*model.Summary, error) {
	content, err := s.completer.CompleteJSON(ctx, combinePrompt, FormatChunkSummaries(partials))
	if err != nil {
		return nil, fmt.Errorf("合并摘要失败: %w", err)
	}
	return ParseSummary(content)
}

// SplitSegments 贪心分块：加入下一个片段会超出预算时开启新块，块永不为空
func SplitSegments(segments model.Segments, maxChars int) []model.Segments {
	var chunks []model.Segments
	var current model.Segments
	size := 0

	for _, seg := range segments {
		cost := utf8.RuneCountInString(seg.Text) + segmentOverhead
		if size+cost > maxChars && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, seg)
		size += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// FormatTranscript 每行格式为 "[MM:SS] (12.3s) text"
func FormatTranscript(segments model.Segments) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		total := int(seg.Start)
		fmt.Fprintf(&b, "[%02d:%02d] (%.1fs) %s", total/60, total%60, seg.Start, seg.Text)
	}
	return b.String()
}

// FormatChunkSummaries 按块顺序拼接各块摘要作为合并输入
func FormatChunkSummaries(partials []*model.Summary) string {
	lines := make([]string, 0, len(partials)*4)
	for i, p := range partials {
		lines = append(lines, fmt.Sprintf("--- Chunk %d ---", i+1))
		lines = append(lines, "Overview: "+p.Overview)
		for _, kp := range p.KeyPoints {
			lines = append(lines, fmt.Sprintf("  [%ds] %s", kp.Timestamp, kp.Text))
		}
	}
	return strings.Join(lines, "\n")
}

type rawSummary struct {
	Overview  *string `json:"overview"`
	KeyPoints *[]struct {
		Timestamp *float64 `json:"timestamp"`
		Text      *string  `json:"text"`
	} `json:"key_points"`
}

// ParseSummary 校验模型输出的结构，格式不符时返回校验错误
func ParseSummary(content string) (*model.Summary, error) {
	var raw rawSummary
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, invalidOutput("摘要不是合法 JSON: %v", err)
	}
	if raw.Overview == nil || strings.TrimSpace(*raw.Overview) == "" {
		return nil, invalidOutput("摘要缺少 overview")
	}
	if raw.KeyPoints == nil {
		return nil, invalidOutput("摘要缺少 key_points")
	}

	summary := &model.Summary{
		Overview:  strings.TrimSpace(*raw.Overview),
		KeyPoints: make([]model.KeyPoint, 0, len(*raw.KeyPoints)),
	}
	for i, kp := range *raw.KeyPoints {
		if kp.Timestamp == nil || kp.Text == nil {
			return nil, invalidOutput("第 %d 个要点缺少 timestamp 或 text", i+1)
		}
		if *kp.Timestamp < 0 {
			return nil, invalidOutput("第 %d 个要点时间戳为负数", i+1)
		}
		summary.KeyPoints = append(summary.KeyPoints, model.KeyPoint{
			Timestamp: int(math.Round(*kp.Timestamp)),
			Text:      strings.TrimSpace(*kp.Text),
		})
	}
	return summary, nil
}

// stripCodeFence 去掉模型偶尔附带的 markdown 代码块
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
