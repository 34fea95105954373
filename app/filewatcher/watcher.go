package filewatcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video-digest/app/config"
	"video-digest/app/logger"
	"video-digest/app/service"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	inboxExt = ".txt"
	doneExt  = ".done"
)

// BatchSubmitter 批量提交视频链接
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, urls []string) []service.SubmitResult
}

// InboxWatcher 监控收件目录，新出现的 .txt 文件按行提交视频链接
type InboxWatcher struct {
	dir       string
	submitter BatchSubmitter
	watcher   *fsnotify.Watcher
	logger    *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	watching  bool
	mu        sync.Mutex

	// 正在处理的文件，启动扫描和 Create 事件可能同时拿到同一个文件
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	checkInterval time.Duration
	maxWait       time.Duration
}

// NewInboxWatcher 创建收件目录监控器，未启用时返回 nil
func NewInboxWatcher(cfg config.WatcherConfig, submitter BatchSubmitter, log *logger.Logger) (*InboxWatcher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.InboxDir == "" {
		return nil, fmt.Errorf("文件监控已启用但没有配置收件目录")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &InboxWatcher{
		dir:           cfg.InboxDir,
		submitter:     submitter,
		watcher:       watcher,
		logger:        log,
		stopCh:        make(chan struct{}),
		inFlight:      make(map[string]struct{}),
		checkInterval: 500 * time.Millisecond,
		maxWait:       30 * time.Second,
	}, nil
}

// Start 启动监控并处理目录中已存在的文件
func (w *InboxWatcher) Start() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return fmt.Errorf("收件目录监控器已经在运行")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("创建收件目录失败: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	w.watching = true
	w.wg.Add(2)
	go w.watchLoop()
	go func() {
		defer w.wg.Done()
		w.processExisting()
	}()

	w.logger.Infof("📂 收件目录监控已启动: %s", w.dir)
	return nil
}

// Stop 停止监控
func (w *InboxWatcher) Stop() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}

	close(w.stopCh)
	err := w.watcher.Close()
	w.wg.Wait()
	w.watching = false

	w.logger.Info("收件目录监控已停止")
	return err
}

// watchLoop 监控事件循环
func (w *InboxWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("收件目录监控错误: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// handleEvent 只处理新建的 .txt 文件
func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 || !isInboxFile(event.Name) {
		return
	}

	if err := w.waitForFileReady(event.Name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Debugf("收件文件已被处理: %s", event.Name)
			return
		}
		w.logger.Warnf("等待文件就绪失败: %s, 错误: %v", event.Name, err)
		return
	}

	if err := w.ProcessFile(event.Name); err != nil {
		w.logger.Errorf("处理收件文件失败: %s, 错误: %v", event.Name, err)
	}
}

// processExisting 处理启动前已放入目录的文件
func (w *InboxWatcher) processExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warnf("读取收件目录失败: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isInboxFile(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if err := w.ProcessFile(path); err != nil {
			w.logger.Errorf("处理已存在的收件文件失败: %s, 错误: %v", path, err)
		}
	}
}

// ProcessFile 读取文件中的链接并批量提交，完成后重命名为 .done。
// 空行和 # 开头的注释行会被忽略。已在处理或已不存在的文件直接跳过。
func (w *InboxWatcher) ProcessFile(path string) error {
	if !w.claim(path) {
		return nil
	}
	defer w.release(path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	urls, err := readURLs(path)
	if err != nil {
		return err
	}

	results := w.submitter.SubmitBatch(context.Background(), urls)
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		w.logger.Warnf("链接提交失败: %s, 错误: %s", r.URL, r.Error)
	}

	donePath := strings.TrimSuffix(path, filepath.Ext(path)) + doneExt
	if err := os.Rename(path, donePath); err != nil {
		return fmt.Errorf("重命名收件文件失败: %w", err)
	}

	w.logger.Infof("收件文件处理完成: %s，提交 %d 个链接，成功 %d 个", filepath.Base(path), len(results), succeeded)
	return nil
}

// waitForFileReady 等待文件写入完成
func (w *InboxWatcher) waitForFileReady(filePath string) error {
	timeout := time.After(w.maxWait)
	var lastSize int64 = -1

	for {
		select {
		case <-timeout:
			return fmt.Errorf("等待文件就绪超时: %s", filePath)
		case <-w.stopCh:
			return fmt.Errorf("监控器已停止")
		case <-time.After(w.checkInterval):
			info, err := os.Stat(filePath)
			if err != nil {
				return fmt.Errorf("获取文件信息失败: %w", err)
			}

			currentSize := info.Size()
			if currentSize == lastSize && currentSize > 0 {
				return nil
			}
			lastSize = currentSize
		}
	}
}

func (w *InboxWatcher) claim(path string) bool {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	if _, ok := w.inFlight[path]; ok {
		return false
	}
	w.inFlight[path] = struct{}{}
	return true
}

func (w *InboxWatcher) release(path string) {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	delete(w.inFlight, path)
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开收件文件失败: %w", err)
	}
	defer f.Close()

	// 带 BOM 的 UTF-8 或 UTF-16 文件按 BOM 解码，其余按 UTF-8 读取
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())

	var urls []string
	scanner := bufio.NewScanner(transform.NewReader(f, decoder))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取收件文件失败: %w", err)
	}
	return urls, nil
}

func isInboxFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), inboxExt)
}
