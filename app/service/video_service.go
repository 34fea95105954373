package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"video-digest/app/logger"
	"video-digest/app/model"
	"video-digest/app/store"
	"video-digest/app/utils/youtube"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// VideoRepository 提交服务依赖的存储操作
type VideoRepository interface {
	Create(ctx context.Context, url, videoID string, title *string, duration *int) (*model.Video, error)
	Get(ctx context.Context, id uint) (*model.Video, error)
	GetByVideoID(ctx context.Context, videoID string) (*model.Video, error)
	List(ctx context.Context, status *model.VideoStatus) ([]model.Video, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

// MetadataFetcher 查询视频标题和时长
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoURL string) (*youtube.Metadata, error)
}

// SubmitResult 批量提交中单个链接的结果
type SubmitResult struct {
	URL     string       `json:"url"`
	Success bool         `json:"success"`
	Video   *model.Video `json:"video,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// VideoService 视频提交与查询
type VideoService struct {
	repo     VideoRepository
	metadata MetadataFetcher
	cache    *cache.Cache
	log      *logger.Logger
}

// NewVideoService 创建视频服务，cacheTTL 为元数据缓存时间
func NewVideoService(repo VideoRepository, metadata MetadataFetcher, cacheTTL time.Duration, log *logger.Logger) *VideoService {
	return &VideoService{
		repo:     repo,
		metadata: metadata,
		cache:    cache.New(cacheTTL, 10*time.Minute),
		log:      log,
	}
}

// Submit 提交单个视频。同一个 video_id 重复提交时原样返回已有记录。
func (s *VideoService) Submit(ctx context.Context, rawURL string) (*model.Video, error) {
	rawURL = strings.TrimSpace(rawURL)
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByVideoID(ctx, videoID)
	if err == nil {
		s.log.Info("视频已存在，返回已有任务", zap.String("video_id", videoID), zap.Uint("id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	meta := s.lookupMetadata(ctx, videoID, rawURL)

	video, err := s.repo.Create(ctx, rawURL, videoID, meta.Title, meta.Duration)
	if errors.Is(err, store.ErrDuplicateKey) {
		// 并发提交时以先写入的记录为准
		return s.repo.GetByVideoID(ctx, videoID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("📥 视频已加入队列", zap.String("video_id", videoID), zap.Uint("id", video.ID))
	return video, nil
}

// SubmitBatch 逐个提交链接，空行跳过，单个失败不影响其他链接
func (s *VideoService) SubmitBatch(ctx context.Context, urls []string) []SubmitResult {
	results := make([]SubmitResult, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}

		video, err := s.Submit(ctx, u)
		if err != nil {
			results = append(results, SubmitResult{URL: u, Error: err.Error()})
			continue
		}
		results = append(results, SubmitResult{URL: u, Success: true, Video: video})
	}
	return results
}

// Get 按 ID 获取视频
func (s *VideoService) Get(ctx context.Context, id uint) (*model.Video, error) {
	return s.repo.Get(ctx, id)
}

// List 列出视频，status 为空时不过滤
func (s *VideoService) List(ctx context.Context, status string) ([]model.Video, error) {
	if status == "" {
		return s.repo.List(ctx, nil)
	}
	st := model.VideoStatus(status)
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return s.repo.List(ctx, &st)
}

// Delete 删除视频记录，不存在时返回 false
func (s *VideoService) Delete(ctx context.Context, id uint) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("视频记录已删除", zap.Uint("id", id))
	}
	return deleted, nil
}

// ErrInvalidStatus 状态过滤参数不合法
var ErrInvalidStatus = errors.New("无效的状态")

// lookupMetadata 查询元数据，失败时只记录日志
func (s *VideoService) lookupMetadata(ctx context.Context, videoID, rawURL string) youtube.Metadata {
	if cached, found := s.cache.Get(videoID); found {
		return cached.(youtube.Metadata)
	}
	if s.metadata == nil {
		return youtube.Metadata{}
	}

	meta, err := s.metadata.FetchMetadata(ctx, rawURL)
	if err != nil {
		s.log.Warn("获取视频元数据失败，继续创建任务", zap.String("video_id", videoID), zap.Error(err))
		return youtube.Metadata{}
	}
	s.cache.Set(videoID, *meta, cache.DefaultExpiration)
	return *meta
}
