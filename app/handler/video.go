package handler

import (
	"errors"
	"net/http"
	"strconv"

	"video-digest/app/logger"
	"video-digest/app/service"
	"video-digest/app/store"
	"video-digest/app/utils/youtube"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VideoHandler 视频任务处理器
type VideoHandler struct {
	videos *service.VideoService
	queue  *service.PersistentTaskQueue
	resp   *ResponseHelper
	log    *logger.Logger
}

// NewVideoHandler 创建视频任务处理器
func NewVideoHandler(videos *service.VideoService, queue *service.PersistentTaskQueue, log *logger.Logger) *VideoHandler {
	return &VideoHandler{
		videos: videos,
		queue:  queue,
		resp:   NewResponseHelper(),
		log:    log,
	}
}

// SubmitVideoRequest 提交视频请求
type SubmitVideoRequest struct {
	URL string `json:"url" binding:"required"`
}

// SubmitBatchRequest 批量提交请求
type SubmitBatchRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

// RegisterRoutes 注册视频和队列相关路由
func (h *VideoHandler) RegisterRoutes(api *gin.RouterGroup) {
	videos := api.Group("/videos")
	{
		videos.POST("", h.SubmitVideo)
		videos.POST("/batch", h.SubmitBatch)
		videos.GET("", h.ListVideos)
		videos.GET("/:id", h.GetVideo)
		videos.DELETE("/:id", h.DeleteVideo)
	}

	api.GET("/queue/status", h.GetQueueStatus)
}

func (h *VideoHandler) success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, h.resp.Success(data, message))
}

func (h *VideoHandler) error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, h.resp.Error(statusCode, message))
}

// SubmitVideo 提交视频，重复提交返回已有任务
func (h *VideoHandler) SubmitVideo(c *gin.Context) {
	var req SubmitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	video, err := h.videos.Submit(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, youtube.ErrInvalidURL) {
			h.error(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("提交视频失败", zap.String("url", req.URL), zap.Error(err))
		h.error(c, http.StatusInternalServerError, "提交视频失败")
		return
	}

	h.success(c, http.StatusOK, video, "提交成功")
}

// SubmitBatch 批量提交视频
func (h *VideoHandler) SubmitBatch(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	results := h.videos.SubmitBatch(c.Request.Context(), req.URLs)
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	h.success(c, http.StatusOK, gin.H{
		"results":   results,
		"total":     len(results),
		"succeeded": succeeded,
	}, "批量提交完成")
}

// ListVideos 获取视频列表，支持 status 过滤
func (h *VideoHandler) ListVideos(c *gin.Context) {
	videos, err := h.videos.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			h.error(c, http.StatusBadRequest, err.Error())
			return
		}
		h.error(c, http.StatusInternalServerError, "获取视频列表失败")
		return
	}

	h.success(c, http.StatusOK, gin.H{
		"list":  videos,
		"total": len(videos),
	}, "获取视频列表成功")
}

// GetVideo 获取单个视频任务
func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	video, err := h.videos.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.error(c, http.StatusNotFound, "视频不存在")
			return
		}
		h.error(c, http.StatusInternalServerError, "获取视频失败")
		return
	}

	h.success(c, http.StatusOK, video, "获取视频成功")
}

// DeleteVideo 删除视频任务
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	deleted, err := h.videos.Delete(c.Request.Context(), id)
	if err != nil {
		h.error(c, http.StatusInternalServerError, "删除视频失败")
		return
	}
	if !deleted {
		h.error(c, http.StatusNotFound, "视频不存在")
		return
	}

	h.success(c, http.StatusOK, nil, "删除成功")
}

// GetQueueStatus 获取队列各状态数量
func (h *VideoHandler) GetQueueStatus(c *gin.Context) {
	status, err := h.queue.GetQueueStatus(c.Request.Context())
	if err != nil {
		h.error(c, http.StatusInternalServerError, "获取队列状态失败")
		return
	}

	h.success(c, http.StatusOK, status, "获取队列状态成功")
}

func (h *VideoHandler) parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, "无效的ID")
		return 0, false
	}
	return uint(id), true
}
