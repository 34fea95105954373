package youtube

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidURL 无法识别的 YouTube 链接
var ErrInvalidURL = errors.New("无效的 YouTube 链接")

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?.*v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// ExtractVideoID 从链接中提取 11 位视频 ID
func ExtractVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	for _, pattern := range urlPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", ErrInvalidURL
}

// IsValidURL 是否为可识别的 YouTube 链接
func IsValidURL(rawURL string) bool {
	_, err := ExtractVideoID(rawURL)
	return err == nil
}

// WatchURL 返回视频的标准观看地址
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
