package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// VideoStatus 视频任务状态
type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// AllVideoStatuses 按生命周期顺序排列的全部状态
var AllVideoStatuses = []VideoStatus{
	VideoStatusQueued,
	VideoStatusProcessing,
	VideoStatusCompleted,
	VideoStatusFailed,
}

// Valid 检查状态值是否合法
func (s VideoStatus) Valid() bool {
	for _, v := range AllVideoStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终止状态
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// TranscriptSource 字幕来源
type TranscriptSource string

const (
	TranscriptSourceCaptions         TranscriptSource = "captions"          // 平台字幕
	TranscriptSourceTranscribedAudio TranscriptSource = "transcribed-audio" // 音频转写
)

// Segment 带时间戳的字幕片段
type Segment struct {
	Start float64 `json:"start"` // 秒，保留一位小数
	Text  string  `json:"text"`
}

// NewSegment 创建规范化的字幕片段
func NewSegment(start float64, text string) Segment {
	return Segment{
		Start: RoundStart(start),
		Text:  NormalizeText(text),
	}
}

// RoundStart 将起始时间四舍五入到一位小数
func RoundStart(start float64) float64 {
	return math.Round(start*10) / 10
}

// NormalizeText 去除首尾空白并做 NFC 归一化
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Segments 字幕片段序列，以 JSON 文本形式落库
type Segments []Segment

// Value 实现 driver.Valuer
func (s Segments) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal([]Segment(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (s *Segments) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil || data == nil {
		*s = nil
		return err
	}
	var out []Segment
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("解析字幕片段失败: %w", err)
	}
	*s = out
	return nil
}

// JoinText 以单个空格拼接所有片段文本
func (s Segments) JoinText() string {
	texts := make([]string, len(s))
	for i, seg := range s {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}

// KeyPoint 摘要要点，Timestamp 为整数秒
type KeyPoint struct {
	Timestamp int    `json:"timestamp"`
	Text      string `json:"text"`
}

// Summary 结构化摘要
type Summary struct {
	Overview  string     `json:"overview"`
	KeyPoints []KeyPoint `json:"key_points"`
}

// Value 实现 driver.Valuer
func (s Summary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (s *Summary) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*s = Summary{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("解析摘要失败: %w", err)
	}
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("不支持的 JSON 列类型: %T", src)
	}
}

// Video 视频处理任务模型
type Video struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	URL                string            `gorm:"type:text;not null" json:"url"`
	VideoID            string            `gorm:"size:32;not null;uniqueIndex:idx_videos_video_id" json:"video_id"`
	Title              *string           `gorm:"type:text" json:"title"`
	Duration           *int              `json:"duration"`
	Status             VideoStatus       `gorm:"size:20;not null;default:'queued';index:idx_videos_status_created,priority:1" json:"status"`
	TranscriptSource   *TranscriptSource `gorm:"size:32" json:"transcript_source"`
	TranscriptSegments Segments          `gorm:"type:text" json:"transcript_segments"`
	TranscriptText     *string           `gorm:"type:text" json:"transcript_text"`
	Summary            *Summary          `gorm:"type:text" json:"summary"`
	ErrorMessage       *string           `gorm:"type:text" json:"error_message"`
	AttemptCount       int               `gorm:"not null;default:0" json:"attempt_count"`
	CreatedAt          time.Time         `gorm:"not null;index:idx_videos_status_created,priority:2" json:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}

// VideoPatch 视频任务的部分更新，只包含允许修改的字段；nil 表示不修改
type VideoPatch struct {
	Title              *string
	Duration           *int
	Status             *VideoStatus
	TranscriptSource   *TranscriptSource
	TranscriptSegments Segments
	TranscriptText     *string
	Summary            *Summary
	ErrorMessage       *string
	AttemptCount       *int
	CompletedAt        *time.Time
}

// IsEmpty 补丁是否没有任何字段
func (p VideoPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Columns 转换为 gorm 按列更新所需的 map
func (p VideoPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Duration != nil {
		cols["duration"] = *p.Duration
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.TranscriptSource != nil {
		cols["transcript_source"] = string(*p.TranscriptSource)
	}
	if p.TranscriptSegments != nil {
		cols["transcript_segments"] = p.TranscriptSegments
	}
	if p.TranscriptText != nil {
		cols["transcript_text"] = *p.TranscriptText
	}
	if p.Summary != nil {
		cols["summary"] = *p.Summary
	}
	if p.ErrorMessage != nil {
		cols["error_message"] = *p.ErrorMessage
	}
	if p.AttemptCount != nil {
		cols["attempt_count"] = *p.AttemptCount
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	return cols
}

// Apply 将补丁应用到内存中的记录
func (p VideoPatch) Apply(v *Video) {
	if p.Title != nil {
		v.Title = p.Title
	}
	if p.Duration != nil {
		v.Duration = p.Duration
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.TranscriptSource != nil {
		v.TranscriptSource = p.TranscriptSource
	}
	if p.TranscriptSegments != nil {
		v.TranscriptSegments = p.TranscriptSegments
	}
	if p.TranscriptText != nil {
		v.TranscriptText = p.TranscriptText
	}
	if p.Summary != nil {
		v.Summary = p.Summary
	}
	if p.ErrorMessage != nil {
		v.ErrorMessage = p.ErrorMessage
	}
	if p.AttemptCount != nil {
		v.AttemptCount = *p.AttemptCount
	}
	if p.CompletedAt != nil {
		v.CompletedAt = p.CompletedAt
	}
}

// Ptr 返回值的指针，便于构造补丁
func Ptr[T any](v T) *T {
	return &v
}
