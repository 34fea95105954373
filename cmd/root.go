package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "video-digest",
	Short:   "视频摘要服务",
	Long:    "提交 YouTube 视频链接，后台获取字幕并生成带时间戳的摘要",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认 ./data/config.yaml 或 ./config.yaml）")
}

// initConfig 设置配置文件搜索路径和环境变量，实际读取在 config.Load 中完成
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 添加配置文件搜索路径
		viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
		viper.AddConfigPath(".")      // 当前目录
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// worker.poll_interval 对应 WORKER_POLL_INTERVAL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
