package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"video-digest/app/config"
	"video-digest/app/logger"
	"video-digest/app/model"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// QueueStore 任务队列依赖的存储操作
type QueueStore interface {
	VideoUpdater
	ClaimNextQueued(ctx context.Context) (*model.Video, error)
	RequeueProcessing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[model.VideoStatus]int64, error)
}

// StageRunner 执行一次完整的流水线
type StageRunner interface {
	Run(ctx context.Context, video *model.Video) error
}

// PersistentTaskQueue 持久化任务队列，单个 worker 串行处理
type PersistentTaskQueue struct {
	store  QueueStore
	runner StageRunner
	cfg    config.WorkerConfig
	log    *logger.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// sleep 可被测试替换，返回 false 表示 ctx 已取消
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewPersistentTaskQueue 创建任务队列
func NewPersistentTaskQueue(cfg config.WorkerConfig, store QueueStore, runner StageRunner, log *logger.Logger) *PersistentTaskQueue {
	return &PersistentTaskQueue{
		store:  store,
		runner: runner,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
	}
}

// Start 恢复残留任务、启动统计定时器并在后台运行 worker
func (q *PersistentTaskQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}

	if q.cfg.RecoverStale {
		if _, err := q.Recover(ctx); err != nil {
			return err
		}
	}

	if q.cfg.StatusReportCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(q.cfg.StatusReportCron, func() { q.reportStatus(ctx) }); err != nil {
			return err
		}
		c.Start()
		q.cron = c
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.Run(runCtx)
	}()

	q.log.Info("任务队列处理器已启动",
		zap.Duration("poll_interval", q.cfg.PollIntervalDuration()),
		zap.Int("max_retry_attempts", q.cfg.MaxRetryAttempts),
		zap.Duration("retry_delay", q.cfg.RetryDelayDuration()))
	return nil
}

// Stop 通知 worker 退出并等待当前任务结束
func (q *PersistentTaskQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	q.running = false
	q.cancel()
	if q.cron != nil {
		<-q.cron.Stop().Done()
		q.cron = nil
	}
	q.wg.Wait()

	q.log.Info("任务队列处理器已停止")
}

// Recover 把上次进程退出时遗留的 processing 任务放回队列
func (q *PersistentTaskQueue) Recover(ctx context.Context) (int64, error) {
	n, err := q.store.RequeueProcessing(ctx)
	if err != nil {
		q.log.Error("重置处理中的任务失败", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		q.log.Info("已将处理中的任务放回队列", zap.Int64("count", n))
	}
	return n, nil
}

// Run 循环处理任务直到 ctx 取消，存储错误只会让循环退避一个轮询间隔
func (q *PersistentTaskQueue) Run(ctx context.Context) {
	poll := q.cfg.PollIntervalDuration()
	for ctx.Err() == nil {
		processed, err := q.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("任务循环出错", zap.Error(err))
			if !q.sleep(ctx, poll) {
				return
			}
			continue
		}
		if !processed && !q.sleep(ctx, poll) {
			return
		}
	}
}

// ProcessNext 认领并处理最早的排队任务，没有任务时返回 false。
// 返回的错误属于循环级错误。
func (q *PersistentTaskQueue) ProcessNext(ctx context.Context) (bool, error) {
	video, err := q.store.ClaimNextQueued(ctx)
	if err != nil {
		return false, err
	}
	if video == nil {
		return false, nil
	}

	// 认领后的写入不随 ctx 取消，保证当前任务的结果落库
	workCtx := context.WithoutCancel(ctx)
	log := q.log.With(
		zap.Uint("id", video.ID),
		zap.String("video_id", video.VideoID),
		zap.String("run_id", uuid.NewString()),
		zap.Int("attempt", video.AttemptCount+1),
	)

	processing := model.VideoStatusProcessing
	if _, err := q.store.Update(workCtx, video.ID, model.VideoPatch{Status: &processing}); err != nil {
		return false, err
	}
	video.Status = processing

	log.Info("🔄 开始处理视频任务")
	startTime := time.Now()

	runErr := q.runner.Run(workCtx, video)
	if runErr == nil {
		log.Info("任务完成", zap.Duration("elapsed", time.Since(startTime)))
		return true, nil
	}

	return true, q.handleFailure(ctx, workCtx, video, runErr, log)
}

// handleFailure 根据重试上限决定重新排队或标记失败
func (q *PersistentTaskQueue) handleFailure(ctx, workCtx context.Context, video *model.Video, runErr error, log *logger.Logger) error {
	message := runErr.Error()

	// 存储不可用不算一次尝试，交给循环退避
	if KindOf(runErr) == FailureStore {
		queued := model.VideoStatusQueued
		if _, err := q.store.Update(workCtx, video.ID, model.VideoPatch{Status: &queued, ErrorMessage: &message}); err != nil {
			log.Error("存储不可用，任务保持处理中状态，等待重启恢复", zap.Error(err))
		}
		return runErr
	}

	attempt := video.AttemptCount + 1
	if attempt < q.cfg.MaxRetryAttempts {
		queued := model.VideoStatusQueued
		patch := model.VideoPatch{Status: &queued, AttemptCount: &attempt, ErrorMessage: &message}
		if _, err := q.store.Update(workCtx, video.ID, patch); err != nil {
			return errors.Join(runErr, err)
		}
		log.Warn("❌ 任务执行失败，稍后重试",
			zap.Int("attempt_count", attempt),
			zap.Int("max_retry_attempts", q.cfg.MaxRetryAttempts),
			zap.String("kind", string(KindOf(runErr))),
			zap.Error(runErr))

		q.sleep(ctx, q.cfg.RetryDelayDuration())
		return nil
	}

	failed := model.VideoStatusFailed
	patch := model.VideoPatch{Status: &failed, AttemptCount: &attempt, ErrorMessage: &message}
	if _, err := q.store.Update(workCtx, video.ID, patch); err != nil {
		return errors.Join(runErr, err)
	}
	log.Error("💀 任务失败(超过重试次数)", zap.Int("attempt_count", attempt), zap.Error(runErr))
	return nil
}

// GetQueueStatus 获取各状态的任务数量
func (q *PersistentTaskQueue) GetQueueStatus(ctx context.Context) (map[string]int64, error) {
	counts, err := q.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	status := make(map[string]int64, len(counts))
	for s, n := range counts {
		status[string(s)] = n
	}
	return status, nil
}

func (q *PersistentTaskQueue) reportStatus(ctx context.Context) {
	status, err := q.GetQueueStatus(ctx)
	if err != nil {
		q.log.Warn("获取队列状态失败", zap.Error(err))
		return
	}
	q.log.Info("队列状态",
		zap.Int64("queued", status[string(model.VideoStatusQueued)]),
		zap.Int64("processing", status[string(model.VideoStatusProcessing)]),
		zap.Int64("completed", status[string(model.VideoStatusCompleted)]),
		zap.Int64("failed", status[string(model.VideoStatusFailed)]))
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
