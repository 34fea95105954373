package bootstrap

import (
	"fmt"
	"time"

	"video-digest/app/config"
	"video-digest/app/database"
	"video-digest/app/logger"
	"video-digest/app/service"
	"video-digest/app/store"
	"video-digest/app/utils/downloader"
	"video-digest/app/utils/executor"
	"video-digest/app/utils/gemini"
	"video-digest/app/utils/mediatool"
	"video-digest/app/utils/openai"
	"video-digest/app/utils/youtube"
)

// App 进程内共享的服务实例
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Store    *store.VideoStore
	Videos   *service.VideoService
	Pipeline *service.PipelineService
	Queue    *service.PersistentTaskQueue
}

// New 初始化数据库并组装所有服务
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := database.Init(cfg, log); err != nil {
		return nil, fmt.Errorf("数据库初始化失败: %w", err)
	}

	videoStore := store.New(database.GetDB())
	exec := executor.New()
	openaiClient := openai.New(cfg)

	completer, err := newCompleter(cfg, openaiClient, log)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	metadata := youtube.NewMetadataClient(exec, cfg.Transcriber.YtDlpPath)
	videos := service.NewVideoService(
		videoStore,
		metadata,
		time.Duration(cfg.YouTube.MetadataCacheMinutes)*time.Minute,
		log.Named("video"),
	)

	dlConfig := downloader.DefaultDownloadConfig()
	dlConfig.YtDlpPath = cfg.Transcriber.YtDlpPath
	dlConfig.FFmpegPath = cfg.Transcriber.FFmpegPath

	transcripts := service.NewTranscriptService(
		cfg.Transcriber,
		youtube.NewCaptionClient("", cfg.YouTube.CaptionLanguage),
		downloader.New(exec, dlConfig),
		mediatool.New(exec, cfg.Transcriber.FFmpegPath, cfg.Transcriber.FFprobePath),
		openaiClient,
		log.Named("transcript"),
	)
	summaries := service.NewSummaryService(cfg.Summarizer, completer, log.Named("summary"))
	pipeline := service.NewPipelineService(videoStore, transcripts, summaries, log.Named("pipeline"))
	queue := service.NewPersistentTaskQueue(cfg.Worker, videoStore, pipeline, log.Named("worker"))

	return &App{
		Config:   cfg,
		Logger:   log,
		Store:    videoStore,
		Videos:   videos,
		Pipeline: pipeline,
		Queue:    queue,
	}, nil
}

// Close 释放数据库连接
func (a *App) Close() error {
	return database.Close()
}

// newCompleter 根据配置选择摘要服务
func newCompleter(cfg *config.Config, openaiClient *openai.Client, log *logger.Logger) (service.JSONCompleter, error) {
	switch cfg.Summarizer.Provider {
	case config.ProviderGemini:
		if len(cfg.Gemini.APIKeys) == 0 {
			return nil, gemini.ErrNoAPIKey
		}
		return gemini.New(cfg, gemini.SummarySchema(), log.Named("gemini")), nil
	case config.ProviderOpenAI:
		return openaiClient, nil
	default:
		return nil, fmt.Errorf("不支持的摘要服务: %s", cfg.Summarizer.Provider)
	}
}
