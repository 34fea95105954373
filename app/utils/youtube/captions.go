package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"

	"video-digest/app/model"

	"resty.dev/v3"
)

const (
	defaultInnertubeURL  = "https://www.youtube.com"
	innertubeClientName  = "ANDROID"
	innertubeClientVer   = "20.10.38"
	generatedCaptionKind = "asr"
)

// ErrNoCaptions 视频没有可用字幕
var ErrNoCaptions = errors.New("没有可用字幕")

// CaptionTrack 字幕轨道
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// Generated 是否为自动生成字幕
func (t CaptionTrack) Generated() bool {
	return t.Kind == generatedCaptionKind
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		Renderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// CaptionClient 通过 innertube 接口获取平台字幕
type CaptionClient struct {
	client   *resty.Client
	language string
}

// NewCaptionClient 创建字幕客户端，baseURL 为空时使用 YouTube 官方地址
func NewCaptionClient(baseURL, language string) *CaptionClient {
	if baseURL == "" {
		baseURL = defaultInnertubeURL
	}
	if language == "" {
		language = "en"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("User-Agent", "com.google.android.youtube/"+innertubeClientVer+" (Linux; U; Android 14)")

	return &CaptionClient{
		client:   client,
		language: language,
	}
}

// FetchCaptions 按优先级获取字幕：人工字幕，自动生成字幕，最后翻译第一条可用轨道
func (c *CaptionClient) FetchCaptions(ctx context.Context, videoID string) (model.Segments, error) {
	tracks, err := c.listTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track, translate, ok := SelectTrack(tracks, c.language)
	if !ok {
		return nil, ErrNoCaptions
	}

	trackURL := track.BaseURL
	if translate {
		trackURL, err = withQuery(trackURL, "tlang", c.language)
		if err != nil {
			return nil, err
		}
	}

	segments, err := c.fetchTimedText(ctx, trackURL)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoCaptions
	}
	return segments, nil
}

// SelectTrack 选择字幕轨道，第二个返回值表示是否需要翻译
func SelectTrack(tracks []CaptionTrack, language string) (CaptionTrack, bool, bool) {
	for _, t := range tracks {
		if t.LanguageCode == language && !t.Generated() {
			return t, false, true
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == language && t.Generated() {
			return t, false, true
		}
	}
	if len(tracks) > 0 {
		first := tracks[0]
		return first, first.LanguageCode != language, true
	}
	return CaptionTrack{}, false, false
}

func (c *CaptionClient) listTracks(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	body := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    innertubeClientName,
				"clientVersion": innertubeClientVer,
			},
		},
		"videoId": videoID,
	}

	var player playerResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("prettyPrint", "false").
		SetBody(body).
		SetResult(&player).
		Post("/youtubei/v1/player")
	if err != nil {
		return nil, fmt.Errorf("请求播放器信息失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("获取播放器信息失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}

	if status := player.PlayabilityStatus.Status; status != "" && status != "OK" {
		return nil, fmt.Errorf("视频不可播放: %s %s", status, player.PlayabilityStatus.Reason)
	}
	return player.Captions.Renderer.CaptionTracks, nil
}

func (c *CaptionClient) fetchTimedText(ctx context.Context, trackURL string) (model.Segments, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(trackURL)
	if err != nil {
		return nil, fmt.Errorf("请求字幕失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("获取字幕失败，状态码: %d", resp.StatusCode())
	}

	return ParseTimedText(resp.Bytes())
}

// ParseTimedText 解析 timedtext XML，起始时间保留一位小数，空文本被丢弃
func ParseTimedText(data []byte) (model.Segments, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析字幕 XML 失败: %w", err)
	}

	segments := make(model.Segments, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			return nil, fmt.Errorf("字幕时间格式错误 %q: %w", t.Start, err)
		}
		// 内容可能被二次转义
		seg := model.NewSegment(start, html.UnescapeString(t.Body))
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("字幕地址无效: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
