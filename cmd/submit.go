package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"video-digest/app/bootstrap"
	"video-digest/app/config"
	"video-digest/app/logger"
	"video-digest/app/model"

	"github.com/spf13/cobra"
)

var listStatus string

var submitCmd = &cobra.Command{
	Use:   "submit <url>...",
	Short: "提交一个或多个视频链接到队列",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		failed := 0
		for _, r := range app.Videos.SubmitBatch(context.Background(), args) {
			if !r.Success {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", r.URL, r.Error)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ #%d %s [%s]\n", r.Video.ID, r.Video.VideoID, r.Video.Status)
		}
		if failed > 0 {
			return fmt.Errorf("%d 个链接提交失败", failed)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出视频任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		videos, err := app.Videos.List(context.Background(), listStatus)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO_ID\tSTATUS\tATTEMPTS\tTITLE")
		for _, v := range videos {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", v.ID, v.VideoID, v.Status, v.AttemptCount, titleOf(v))
		}
		return w.Flush()
	},
}

// openApp 为一次性命令初始化服务，日志只输出警告以上
func openApp() (*bootstrap.App, error) {
	cfg := config.Load()
	cfg.Log.Level = "warn"
	cfg.Log.Output = "stdout"
	return bootstrap.New(cfg, logger.New(cfg.Log))
}

func titleOf(v model.Video) string {
	if v.Title == nil {
		return "-"
	}
	return *v.Title
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "按状态过滤: queued, processing, completed, failed")
	rootCmd.AddCommand(submitCmd, listCmd)
}
