package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"video-digest/app/utils/executor"
)

// Metadata 视频元数据
type Metadata struct {
	Title    *string
	Duration *int // 秒
}

type ytDlpInfo struct {
	Title    *string  `json:"title"`
	Duration *float64 `json:"duration"`
}

// MetadataClient 通过 yt-dlp 获取元数据，不下载视频
type MetadataClient struct {
	exec      executor.Executor
	ytDlpPath string
}

// NewMetadataClient 创建元数据客户端
func NewMetadataClient(exec executor.Executor, ytDlpPath string) *MetadataClient {
	if ytDlpPath == "" {
		ytDlpPath = "yt-dlp"
	}
	return &MetadataClient{exec: exec, ytDlpPath: ytDlpPath}
}

// FetchMetadata 获取标题和时长
func (c *MetadataClient) FetchMetadata(ctx context.Context, videoURL string) (*Metadata, error) {
	out, err := c.exec.Execute(ctx, c.ytDlpPath,
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		videoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("获取视频元数据失败: %w", err)
	}

	return parseMetadata([]byte(out))
}

func parseMetadata(data []byte) (*Metadata, error) {
	var info ytDlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("解析视频元数据失败: %w", err)
	}

	meta := &Metadata{Title: info.Title}
	if info.Duration != nil {
		d := int(math.Round(*info.Duration))
		meta.Duration = &d
	}
	return meta, nil
}
