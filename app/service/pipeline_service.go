package service

import (
	"context"
	"time"

	"video-digest/app/logger"
	"video-digest/app/model"

	"go.uber.org/zap"
)

// TranscriptAcquirer 获取字幕片段及来源
type TranscriptAcquirer interface {
	Acquire(ctx context.Context, video *model.Video) (model.Segments, model.TranscriptSource, error)
}

// Summarizer 根据字幕生成结构化摘要
type Summarizer interface {
	Summarize(ctx context.Context, segments model.Segments, text string) (*model.Summary, error)
}

// VideoUpdater 按补丁更新视频记录
type VideoUpdater interface {
	Update(ctx context.Context, id uint, patch model.VideoPatch) (*model.Video, error)
}

// PipelineService 驱动单个视频依次完成字幕和摘要两个阶段
type PipelineService struct {
	store      VideoUpdater
	acquirer   TranscriptAcquirer
	summarizer Summarizer
	log        *logger.Logger
	now        func() time.Time
}

// NewPipelineService 创建流水线
func NewPipelineService(store VideoUpdater, acquirer TranscriptAcquirer, summarizer Summarizer, log *logger.Logger) *PipelineService {
	return &PipelineService{
		store:      store,
		acquirer:   acquirer,
		summarizer: summarizer,
		log:        log,
		now:        time.Now,
	}
}

// Run 执行流水线，每个阶段的结果一次性写入。
// 上次尝试已保存字幕时直接进入摘要阶段。失败原因以 *StageError 返回，是否重试由调用方决定。
func (p *PipelineService) Run(ctx context.Context, video *model.Video) error {
	log := p.log.With(zap.Uint("id", video.ID), zap.String("video_id", video.VideoID))

	segments := video.TranscriptSegments
	text := ""
	if video.TranscriptText != nil {
		text = *video.TranscriptText
	}

	if video.TranscriptSource == nil || segments == nil {
		acquired, source, err := p.acquirer.Acquire(ctx, video)
		if err != nil {
			return newStageError(StageAcquire, FailureTransient, err)
		}

		segments = acquired
		text = segments.JoinText()
		patch := model.VideoPatch{
			TranscriptSource:   &source,
			TranscriptSegments: segments,
			TranscriptText:     &text,
		}
		if _, err := p.store.Update(ctx, video.ID, patch); err != nil {
			return newStageError(StageAcquire, FailureStore, err)
		}
		patch.Apply(video)
		log.Info("字幕已保存", zap.String("source", string(source)), zap.Int("segments", len(segments)))
	} else {
		log.Info("沿用已保存的字幕", zap.Int("segments", len(segments)))
	}

	summary, err := p.summarizer.Summarize(ctx, segments, text)
	if err != nil {
		kind := FailureTransient
		if isValidationError(err) {
			kind = FailureValidation
		}
		return newStageError(StageSummarize, kind, err)
	}

	completedAt := p.now()
	status := model.VideoStatusCompleted
	patch := model.VideoPatch{
		Summary:     summary,
		Status:      &status,
		CompletedAt: &completedAt,
	}
	if _, err := p.store.Update(ctx, video.ID, patch); err != nil {
		return newStageError(StageSummarize, FailureStore, err)
	}
	patch.Apply(video)

	log.Info("✅ 视频处理完成", zap.Int("key_points", len(summary.KeyPoints)))
	return nil
}
