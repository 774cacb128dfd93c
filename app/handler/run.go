package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meta-harvest/app/service"

	"github.com/gin-gonic/gin"
)

// RunHandler 运行状态和手动触发
type RunHandler struct {
	pipeline *service.Pipeline
	// 后台运行使用的上下文，不随请求结束而取消
	ctx context.Context
}

// NewRunHandler 创建运行处理器
func NewRunHandler(ctx context.Context, pipeline *service.Pipeline) *RunHandler {
	return &RunHandler{pipeline: pipeline, ctx: ctx}
}

// Health 健康检查
func (h *RunHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ListRuns 最近的运行汇总和当前状态
func (h *RunHandler) ListRuns(c *gin.Context) {
	success(c, gin.H{
		"status": h.pipeline.Status(),
		"runs":   h.pipeline.Summaries(),
	}, "获取运行记录成功")
}

// TriggerRun 在后台开始一次运行
func (h *RunHandler) TriggerRun(c *gin.Context) {
	err := h.pipeline.Trigger(h.ctx)
	if errors.Is(err, service.ErrPipelineBusy) {
		fail(c, http.StatusConflict, 409, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "启动运行失败: "+err.Error())
		return
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Code:    0,
		Message: "运行已开始",
		Data:    h.pipeline.Status(),
	})
}

// GetConsolidation 最近一次合并结果
func (h *RunHandler) GetConsolidation(c *gin.Context) {
	report := h.pipeline.LastReport()
	if report == nil {
		fail(c, http.StatusNotFound, 404, "尚未进行合并")
		return
	}
	success(c, report, "获取合并结果成功")
}
