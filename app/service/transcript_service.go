package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"video-digest/app/config"
	"video-digest/app/logger"
	"video-digest/app/model"
	"video-digest/app/utils/downloader"
	"video-digest/app/utils/mediatool"

	"go.uber.org/zap"
)

// ErrEmptyTranscript 音频转写没有得到任何文本
var ErrEmptyTranscript = errors.New("转写结果为空")

// CaptionFetcher 平台字幕获取
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID string) (model.Segments, error)
}

// AudioDownloader 音频下载
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoURL, dir string) (*downloader.DownloadResult, error)
}

// AudioSplitter 按固定时长切分音频
type AudioSplitter interface {
	Split(ctx context.Context, path string, chunkSeconds int, outDir string) ([]mediatool.Chunk, error)
}

// AudioTranscriber 转写单个音频文件，返回的起始时间相对该文件
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error)
}

// TranscriptService 获取视频字幕：优先平台字幕，失败时下载音频转写
type TranscriptService struct {
	captions      CaptionFetcher
	downloader    AudioDownloader
	splitter      AudioSplitter
	transcriber   AudioTranscriber
	tempDir       string
	maxAudioBytes int64
	chunkSeconds  int
	log           *logger.Logger
}

// NewTranscriptService 创建字幕获取服务
func NewTranscriptService(cfg config.TranscriberConfig, captions CaptionFetcher, dl AudioDownloader, splitter AudioSplitter, transcriber AudioTranscriber, log *logger.Logger) *TranscriptService {
	return &TranscriptService{
		captions:      captions,
		downloader:    dl,
		splitter:      splitter,
		transcriber:   transcriber,
		tempDir:       cfg.TempDir,
		maxAudioBytes: cfg.MaxAudioBytes,
		chunkSeconds:  cfg.ChunkSeconds,
		log:           log,
	}
}

// Acquire 返回完整的字幕片段及其来源，失败时不返回部分结果
func (s *TranscriptService) Acquire(ctx context.Context, video *model.Video) (model.Segments, model.TranscriptSource, error) {
	log := s.log.With(zap.Uint("id", video.ID), zap.String("video_id", video.VideoID))

	if s.captions != nil {
		segments, err := s.captions.FetchCaptions(ctx, video.VideoID)
		if err == nil {
			// 只有空白文本的字幕视为没有字幕
			segments = normalizeSegments(segments, 0)
		}
		if err == nil && len(segments) > 0 {
			log.Info("已获取平台字幕", zap.Int("segments", len(segments)))
			return segments, model.TranscriptSourceCaptions, nil
		}
		if err != nil {
			log.Warn("获取平台字幕失败，改用音频转写", zap.Error(err))
		} else {
			log.Info("没有平台字幕，改用音频转写")
		}
	}

	segments, err := s.transcribeAudio(ctx, video.URL, log)
	if err != nil {
		return nil, "", err
	}
	return segments, model.TranscriptSourceTranscribedAudio, nil
}

// transcribeAudio 下载并转写音频，临时目录在任何路径上都会被删除
func (s *TranscriptService) transcribeAudio(ctx context.Context, videoURL string, log *logger.Logger) (model.Segments, error) {
	dir, err := os.MkdirTemp(s.tempDir, "yt_audio_")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("清理临时音频失败", zap.String("dir", dir), zap.Error(err))
		} else {
			log.Debug("已清理临时音频", zap.String("dir", dir))
		}
	}()

	audio, err := s.downloader.DownloadAudio(ctx, videoURL, dir)
	if err != nil {
		return nil, err
	}
	log.Info("音频下载完成", zap.Int64("size", audio.Size), zap.Duration("elapsed", audio.Duration))

	var segments model.Segments
	if audio.Size <= s.maxAudioBytes {
		raw, err := s.transcriber.Transcribe(ctx, audio.Path)
		if err != nil {
			return nil, fmt.Errorf("音频转写失败: %w", err)
		}
		segments = normalizeSegments(raw, 0)
	} else {
		segments, err = s.transcribeChunked(ctx, audio.Path, filepath.Join(dir, "chunks"), log)
		if err != nil {
			return nil, err
		}
	}

	if len(segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return segments, nil
}

// transcribeChunked 切分超限音频逐段转写，起始时间加上之前片段的累计时长
func (s *TranscriptService) transcribeChunked(ctx context.Context, audioPath, chunkDir string, log *logger.Logger) (model.Segments, error) {
	chunks, err := s.splitter.Split(ctx, audioPath, s.chunkSeconds, chunkDir)
	if err != nil {
		return nil, err
	}
	log.Info("音频超过大小限制，分段转写", zap.Int("chunks", len(chunks)))

	var all model.Segments
	offset := 0.0
	for i, chunk := range chunks {
		raw, err := s.transcriber.Transcribe(ctx, chunk.Path)
		_ = os.Remove(chunk.Path)
		if err != nil {
			return nil, fmt.Errorf("第 %d/%d 段音频转写失败: %w", i+1, len(chunks), err)
		}
		all = append(all, normalizeSegments(raw, offset)...)
		offset += chunk.Duration
	}
	return all, nil
}

// normalizeSegments 加偏移后取整、去空白，丢弃空文本
func normalizeSegments(raw []model.Segment, offset float64) model.Segments {
	out := make(model.Segments, 0, len(raw))
	for _, seg := range raw {
		n := model.NewSegment(seg.Start+offset, seg.Text)
		if n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
