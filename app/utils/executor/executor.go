package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor 执行外部命令（yt-dlp、ffmpeg、ffprobe）
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

type execExecutor struct{}

// New 创建基于 os/exec 的执行器
func New() Executor {
	return &execExecutor{}
}

// Execute 运行命令并返回标准输出，失败时错误中附带 stderr
func (e *execExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("命令 %s 执行失败: %w\nstderr: %s", name, err, stderrStr)
		}
		return "", fmt.Errorf("命令 %s 执行失败: %w", name, err)
	}

	return stdout.String(), nil
}
