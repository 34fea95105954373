package mediatool

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"video-digest/app/utils/executor"
)

// Chunk 切分后的音频片段
type Chunk struct {
	Path     string
	Duration float64 // 秒
}

// Tool 封装 ffmpeg / ffprobe
type Tool struct {
	exec        executor.Executor
	ffmpegPath  string
	ffprobePath string
}

// New 创建媒体工具
func New(exec executor.Executor, ffmpegPath, ffprobePath string) *Tool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Tool{exec: exec, ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Duration 返回媒体时长（秒）
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	out, err := t.exec.Execute(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("获取音频时长失败: %w", err)
	}

	value := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("解析音频时长失败 %q: %w", value, err)
	}
	return d, nil
}

// Split 按固定时长切分音频，返回按顺序排列的片段及其实际时长
func (t *Tool) Split(ctx context.Context, path string, chunkSeconds int, outDir string) ([]Chunk, error) {
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("切分时长必须大于 0")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建切分目录失败: %w", err)
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp3"
	}
	pattern := filepath.Join(outDir, "chunk_%03d"+ext)

	_, err := t.exec.Execute(ctx, t.ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(chunkSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("切分音频失败: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "chunk_*"+ext))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("切分后未生成任何音频片段")
	}
	// 按文件名中的序号排序，超过三位数时字典序不再等于时间序
	sort.Slice(paths, func(i, j int) bool {
		return chunkIndex(paths[i], ext) < chunkIndex(paths[j], ext)
	})

	chunks := make([]Chunk, 0, len(paths))
	for _, p := range paths {
		d, err := t.Duration(ctx, p)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{Path: p, Duration: d})
	}
	return chunks, nil
}

// chunkIndex 解析 chunk_NNN 中的序号，无法解析时排在最后
func chunkIndex(path, ext string) int {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "chunk_"), ext)
	n, err := strconv.Atoi(name)
	if err != nil {
		return math.MaxInt
	}
	return n
}
