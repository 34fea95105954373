package mediatool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptedExecutor 模拟 ffmpeg 切分并按文件名返回 ffprobe 时长
type scriptedExecutor struct {
	chunks          int
	durations       map[string]string
	defaultDuration string
	ffmpegErr       error
}

func (s *scriptedExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	switch name {
	case "ffmpeg":
		if s.ffmpegErr != nil {
			return "", s.ffmpegErr
		}
		pattern := args[len(args)-1]
		for i := 0; i < s.chunks; i++ {
			if err := os.WriteFile(fmt.Sprintf(pattern, i), []byte("x"), 0644); err != nil {
				return "", err
			}
		}
		return "", nil
	case "ffprobe":
		path := args[len(args)-1]
		if d, ok := s.durations[filepath.Base(path)]; ok {
			return d + "\n", nil
		}
		if s.defaultDuration != "" {
			return s.defaultDuration + "\n", nil
		}
		return "", errors.New("unknown file")
	}
	return "", fmt.Errorf("unexpected command %s", name)
}

func TestDuration(t *testing.T) {
	tool := New(&scriptedExecutor{durations: map[string]string{"a.mp3": "1234.567"}}, "", "")
	d, err := tool.Duration(context.Background(), "/tmp/a.mp3")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if d != 1234.567 {
		t.Errorf("Duration() = %v", d)
	}

	bad := New(&scriptedExecutor{durations: map[string]string{"a.mp3": "N/A"}}, "", "")
	if _, err := bad.Duration(context.Background(), "/tmp/a.mp3"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSplit(t *testing.T) {
	exec := &scriptedExecutor{
		chunks: 3,
		durations: map[string]string{
			"chunk_000.mp3": "600.0",
			"chunk_001.mp3": "600.05",
			"chunk_002.mp3": "125.5",
		},
	}
	tool := New(exec, "", "")
	outDir := filepath.Join(t.TempDir(), "chunks")

	chunks, err := tool.Split(context.Background(), "/tmp/audio.mp3", 600, outDir)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantDur := []float64{600.0, 600.05, 125.5}
	for i, c := range chunks {
		if !strings.HasSuffix(c.Path, fmt.Sprintf("chunk_%03d.mp3", i)) {
			t.Errorf("chunk[%d] path = %s", i, c.Path)
		}
		if c.Duration != wantDur[i] {
			t.Errorf("chunk[%d] duration = %v, want %v", i, c.Duration, wantDur[i])
		}
	}
}

func TestSplitOrdersPastThreeDigits(t *testing.T) {
	exec := &scriptedExecutor{chunks: 1002, defaultDuration: "600.0"}
	tool := New(exec, "", "")

	chunks, err := tool.Split(context.Background(), "/tmp/audio.mp3", 600, t.TempDir())
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1002 {
		t.Fatalf("got %d chunks, want 1002", len(chunks))
	}
	for _, i := range []int{0, 99, 100, 999, 1000, 1001} {
		if !strings.HasSuffix(chunks[i].Path, fmt.Sprintf("chunk_%03d.mp3", i)) {
			t.Errorf("chunk[%d] path = %s", i, chunks[i].Path)
		}
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		name         string
		exec         *scriptedExecutor
		chunkSeconds int
	}{
		{name: "invalid chunk length", exec: &scriptedExecutor{}, chunkSeconds: 0},
		{name: "ffmpeg failure", exec: &scriptedExecutor{ffmpegErr: errors.New("boom")}, chunkSeconds: 600},
		{name: "no output", exec: &scriptedExecutor{chunks: 0}, chunkSeconds: 600},
		{name: "probe failure", exec: &scriptedExecutor{chunks: 1, durations: map[string]string{}}, chunkSeconds: 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := New(tt.exec, "", "")
			if _, err := tool.Split(context.Background(), "/tmp/audio.mp3", tt.chunkSeconds, t.TempDir()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
