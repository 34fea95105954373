package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
	Summarizer  SummarizerConfig  `mapstructure:"summarizer"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	YouTube     YouTubeConfig     `mapstructure:"youtube"`
	Watcher     WatcherConfig     `mapstructure:"watcher"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 文件输出目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type WorkerConfig struct {
	PollInterval     int    `mapstructure:"poll_interval"`      // 秒
	MaxRetryAttempts int    `mapstructure:"max_retry_attempts"` // 重试上限
	RetryDelay       int    `mapstructure:"retry_delay"`        // 秒
	RecoverStale     bool   `mapstructure:"recover_stale"`      // 启动时把 processing 任务放回队列
	StatusReportCron string `mapstructure:"status_report_cron"` // 为空则不输出队列统计
}

// PollIntervalDuration 轮询间隔
func (w WorkerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(w.PollInterval) * time.Second
}

// RetryDelayDuration 重试退避时长
func (w WorkerConfig) RetryDelayDuration() time.Duration {
	return time.Duration(w.RetryDelay) * time.Second
}

type TranscriberConfig struct {
	TempDir       string `mapstructure:"temp_dir"`
	MaxAudioBytes int64  `mapstructure:"max_audio_bytes"`
	ChunkSeconds  int    `mapstructure:"chunk_seconds"`
	YtDlpPath     string `mapstructure:"yt_dlp_path"`
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	FFprobePath   string `mapstructure:"ffprobe_path"`
	Model         string `mapstructure:"model"`
}

type SummarizerConfig struct {
	Provider    string  `mapstructure:"provider"` // openai 或 gemini
	MaxChars    int     `mapstructure:"max_chars"`
	OpenAIModel string  `mapstructure:"openai_model"`
	GeminiModel string  `mapstructure:"gemini_model"`
	Temperature float32 `mapstructure:"temperature"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // 秒
}

type GeminiConfig struct {
	APIKeys []string `mapstructure:"api_keys"` // 遇到限流时轮换
	BaseURL string   `mapstructure:"base_url"` // 为空使用官方地址
}

type YouTubeConfig struct {
	MetadataCacheMinutes int    `mapstructure:"metadata_cache_minutes"`
	CaptionLanguage      string `mapstructure:"caption_language"`
}

type WatcherConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	InboxDir string `mapstructure:"inbox_dir"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

func Load() *Config {
	setDefaults()
	bindEnv()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("database.path", "data/video-digest.db")

	// 队列默认配置
	viper.SetDefault("worker.poll_interval", 5)
	viper.SetDefault("worker.max_retry_attempts", 3)
	viper.SetDefault("worker.retry_delay", 30)
	viper.SetDefault("worker.recover_stale", true)
	viper.SetDefault("worker.status_report_cron", "@every 5m")

	viper.SetDefault("transcriber.temp_dir", "")
	viper.SetDefault("transcriber.max_audio_bytes", 25*1024*1024)
	viper.SetDefault("transcriber.chunk_seconds", 600)
	viper.SetDefault("transcriber.yt_dlp_path", "yt-dlp")
	viper.SetDefault("transcriber.ffmpeg_path", "ffmpeg")
	viper.SetDefault("transcriber.ffprobe_path", "ffprobe")
	viper.SetDefault("transcriber.model", "whisper-1")

	viper.SetDefault("summarizer.provider", ProviderOpenAI)
	viper.SetDefault("summarizer.max_chars", 100000)
	viper.SetDefault("summarizer.openai_model", "gpt-4o-mini")
	viper.SetDefault("summarizer.gemini_model", "gemini-2.5-flash")
	viper.SetDefault("summarizer.temperature", 0.3)

	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.timeout", 300)

	viper.SetDefault("youtube.metadata_cache_minutes", 30)
	viper.SetDefault("youtube.caption_language", "en")

	viper.SetDefault("watcher.enabled", false)
	viper.SetDefault("watcher.inbox_dir", "data/inbox")
}

// bindEnv 兼容旧的环境变量名
func bindEnv() {
	_ = viper.BindEnv("worker.poll_interval", "WORKER_POLL_INTERVAL")
	_ = viper.BindEnv("worker.max_retry_attempts", "MAX_RETRY_ATTEMPTS")
	_ = viper.BindEnv("worker.retry_delay", "RETRY_DELAY_SECONDS")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("gemini.api_keys", "GEMINI_API_KEYS")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.Database.Path == "" {
		return fmt.Errorf("数据库路径未设置")
	}
	if config.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval 必须大于 0")
	}
	if config.Worker.MaxRetryAttempts <= 0 {
		return fmt.Errorf("worker.max_retry_attempts 必须大于 0")
	}
	if config.Worker.RetryDelay < 0 {
		return fmt.Errorf("worker.retry_delay 不能为负数")
	}
	if config.Transcriber.MaxAudioBytes <= 0 {
		return fmt.Errorf("transcriber.max_audio_bytes 必须大于 0")
	}
	if config.Transcriber.ChunkSeconds <= 0 {
		return fmt.Errorf("transcriber.chunk_seconds 必须大于 0")
	}
	if config.Summarizer.MaxChars <= 0 {
		return fmt.Errorf("summarizer.max_chars 必须大于 0")
	}
	switch config.Summarizer.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("不支持的摘要服务: %s", config.Summarizer.Provider)
	}
	return nil
}
