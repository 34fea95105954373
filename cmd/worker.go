package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"video-digest/app/bootstrap"
	"video-digest/app/config"
	"video-digest/app/logger"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "只运行后台任务队列，不启动 HTTP 服务",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Close()

		app, err := bootstrap.New(cfg, log)
		if err != nil {
			log.Fatalf("初始化失败: %v", err)
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := app.Queue.Start(ctx); err != nil {
			log.Fatalf("启动任务队列失败: %v", err)
		}

		<-ctx.Done()
		log.Info("收到关闭信号，等待当前任务结束...")
		app.Queue.Stop()
		log.Info("任务队列已退出")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
