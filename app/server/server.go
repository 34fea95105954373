package server

import (
	"context"
	"net/http"
	"time"

	"video-digest/app/bootstrap"
	"video-digest/app/config"
	"video-digest/app/filewatcher"
	"video-digest/app/handler"
	"video-digest/app/logger"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器，同时托管任务队列和收件目录监控
type Server struct {
	Config  *config.Config
	Logger  *logger.Logger
	app     *bootstrap.App
	gin     *gin.Engine
	http    *http.Server
	watcher *filewatcher.InboxWatcher
}

// New 创建一个新的 Server 实例
func New(app *bootstrap.App) (*Server, error) {
	cfg, log := app.Config, app.Logger

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(log))

	watcher, err := filewatcher.NewInboxWatcher(cfg.Watcher, app.Videos, log.Named("inbox"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		Config:  cfg,
		Logger:  log,
		app:     app,
		gin:     router,
		watcher: watcher,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
	}

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// Handler 返回路由，供测试直接调用
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start 启动任务队列、收件目录监控和 HTTP 服务
func (s *Server) Start(ctx context.Context) error {
	if err := s.app.Queue.Start(ctx); err != nil {
		return err
	}
	if err := s.watcher.Start(); err != nil {
		s.app.Queue.Stop()
		return err
	}

	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown 先停止接收请求，再等待当前任务结束
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	if werr := s.watcher.Stop(); werr != nil {
		s.Logger.Errorf("停止收件目录监控失败: %v", werr)
	}
	s.app.Queue.Stop()

	// 关闭数据库连接
	if cerr := s.app.Close(); cerr != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", cerr)
	}
	return err
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	videoHandler := handler.NewVideoHandler(s.app.Videos, s.app.Queue, s.Logger.Named("api"))

	s.gin.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.NewResponseHelper().Success(gin.H{"status": "ok"}, "ok"))
	})

	// API路由组
	api := s.gin.Group("/api")
	videoHandler.RegisterRoutes(api)
}

// accessLog 简单的访问日志
func accessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %v",
			c.Request.Method,
			c.Request.RequestURI,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
