package store

import (
	"context"
	"errors"
	"strings"

	"video-digest/app/model"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("视频记录不存在")
	// ErrDuplicateKey video_id 已存在
	ErrDuplicateKey = errors.New("视频已存在")
)

// VideoStore 视频任务的持久化存储，独占 videos 表
type VideoStore struct {
	db *gorm.DB
}

// New 创建视频存储
func New(db *gorm.DB) *VideoStore {
	return &VideoStore{db: db}
}

// Create 创建排队中的视频任务，video_id 重复时返回 ErrDuplicateKey
func (s *VideoStore) Create(ctx context.Context, url, videoID string, title *string, duration *int) (*model.Video, error) {
	video := &model.Video{
		URL:          url,
		VideoID:      videoID,
		Title:        title,
		Duration:     duration,
		Status:       model.VideoStatusQueued,
		AttemptCount: 0,
	}

	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return video, nil
}

// Get 按主键获取
func (s *VideoStore) Get(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	if err := s.db.WithContext(ctx).First(&video, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

// GetByVideoID 按外部视频 ID 获取
func (s *VideoStore) GetByVideoID(ctx context.Context, videoID string) (*model.Video, error) {
	var video model.Video
	if err := s.db.WithContext(ctx).Where("video_id = ?", videoID).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

// List 按创建时间倒序列出，status 为 nil 时不过滤
func (s *VideoStore) List(ctx context.Context, status *model.VideoStatus) ([]model.Video, error) {
	query := s.db.WithContext(ctx).Model(&model.Video{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	videos := make([]model.Video, 0)
	if err := query.Order("created_at DESC").Order("id DESC").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// Update 在一个事务内合并补丁中的字段并返回最新记录
func (s *VideoStore) Update(ctx context.Context, id uint, patch model.VideoPatch) (*model.Video, error) {
	var video model.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&video, id).Error; err != nil {
			return err
		}
		if patch.IsEmpty() {
			return nil
		}

		if err := tx.Model(&model.Video{}).Where("id = ?", id).Updates(patch.Columns()).Error; err != nil {
			return err
		}
		return tx.First(&video, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

// Delete 删除记录，返回是否存在
func (s *VideoStore) Delete(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&model.Video{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimNextQueued 返回最早创建的排队任务，没有时返回 nil。
// 只做选择不加锁，调用方需保证单一 worker。
func (s *VideoStore) ClaimNextQueued(ctx context.Context) (*model.Video, error) {
	var video model.Video
	err := s.db.WithContext(ctx).
		Where("status = ?", string(model.VideoStatusQueued)).
		Order("created_at ASC").
		Order("id ASC").
		First(&video).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &video, nil
}

// RequeueProcessing 将残留的 processing 任务放回队列，返回影响行数
func (s *VideoStore) RequeueProcessing(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.Video{}).
		Where("status = ?", string(model.VideoStatusProcessing)).
		Update("status", string(model.VideoStatusQueued))
	return result.RowsAffected, result.Error
}

// CountByStatus 统计各状态的任务数量，缺失的状态计为 0
func (s *VideoStore) CountByStatus(ctx context.Context) (map[model.VideoStatus]int64, error) {
	var rows []struct {
		Status model.VideoStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Video{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.VideoStatus]int64, len(model.AllVideoStatuses))
	for _, st := range model.AllVideoStatuses {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
