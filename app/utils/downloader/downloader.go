package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-digest/app/utils/executor"
)

// DownloadConfig 音频下载配置
type DownloadConfig struct {
	YtDlpPath  string // yt-dlp 可执行文件
	FFmpegPath string // 用于音频提取，为空时由 yt-dlp 自行查找
	Format     string // yt-dlp 格式选择
	Codec      string // 输出音频编码
	Quality    string // 码率 (kbps)
	BaseName   string // 输出文件名（不含扩展名）
}

// DefaultDownloadConfig 默认下载配置
func DefaultDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		YtDlpPath: "yt-dlp",
		Format:    "bestaudio/best",
		Codec:     "mp3",
		Quality:   "128",
		BaseName:  "audio",
	}
}

// DownloadResult 下载结果
type DownloadResult struct {
	Size     int64         // 文件大小
	Duration time.Duration // 下载耗时
	Path     string        // 保存的文件路径
}

var audioExts = []string{".mp3", ".m4a", ".wav", ".ogg", ".webm", ".opus"}

// AudioDownloader 使用 yt-dlp 提取视频音轨
type AudioDownloader struct {
	exec   executor.Executor
	config *DownloadConfig
}

// New 创建音频下载器
func New(exec executor.Executor, config *DownloadConfig) *AudioDownloader {
	if config == nil {
		config = DefaultDownloadConfig()
	}
	return &AudioDownloader{exec: exec, config: config}
}

// DownloadAudio 下载音频到 dir 目录，调用方负责清理该目录
func (d *AudioDownloader) DownloadAudio(ctx context.Context, videoURL, dir string) (*DownloadResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建下载目录失败: %w", err)
	}

	startTime := time.Now()
	output := filepath.Join(dir, d.config.BaseName+".%(ext)s")

	args := []string{
		"-f", d.config.Format,
		"-x",
		"--audio-format", d.config.Codec,
		"--audio-quality", d.config.Quality + "K",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"-o", output,
	}
	if d.config.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", d.config.FFmpegPath)
	}
	args = append(args, videoURL)

	if _, err := d.exec.Execute(ctx, d.config.YtDlpPath, args...); err != nil {
		return nil, fmt.Errorf("下载音频失败: %w", err)
	}

	path, err := findAudioFile(dir, d.config.BaseName+"."+d.config.Codec)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取音频文件信息失败: %w", err)
	}

	return &DownloadResult{
		Size:     info.Size(),
		Duration: time.Since(startTime),
		Path:     path,
	}, nil
}

// findAudioFile 优先返回期望文件名，否则返回目录中第一个音频文件
func findAudioFile(dir, preferred string) (string, error) {
	preferredPath := filepath.Join(dir, preferred)
	if _, err := os.Stat(preferredPath); err == nil {
		return preferredPath, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("读取下载目录失败: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range audioExts {
			if ext == want {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("下载目录中未找到音频文件: %s", dir)
}
