package logger

import (
	"os"
	"path/filepath"
	"testing"

	"video-digest/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"invalid", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := parseLevel(tt.level); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewStdout(t *testing.T) {
	log := New(config.LogConfig{Level: "info", Format: "json", Output: "stdout"})
	if log == nil {
		t.Fatal("New() returned nil")
	}

	// 子日志记录器不应 panic
	log.Named("worker").With(zap.Uint("job_id", 1)).Infof("message %d", 1)
	if err := log.Close(); err != nil {
		// stdout 在部分平台上不支持 Sync
		t.Logf("Close() error = %v", err)
	}
}

func TestNewFileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log := New(config.LogConfig{Level: "info", Format: "json", Output: "file", Dir: dir, MaxSize: 1})
	log.Info("hello", zap.String("k", "v"))
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected a log file to be written")
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Errorf("discarded %s", "message")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
