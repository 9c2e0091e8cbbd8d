package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ontcollector/ontcollector/addone/collect"
	"github.com/ontcollector/ontcollector/internal/database"
	"github.com/ontcollector/ontcollector/internal/service"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

// CollectorHandler 采集器处理器
type CollectorHandler struct {
	collectorService *service.CollectorService
	scheduler        *service.Scheduler
}

// NewCollectorHandler 创建采集器处理器
func NewCollectorHandler(collectorService *service.CollectorService, scheduler *service.Scheduler) *CollectorHandler {
	return &CollectorHandler{
		collectorService: collectorService,
		scheduler:        scheduler,
	}
}

// ParseRequest 离线解析请求：lines 为已提取的内容行，output 为原始 Shell 回显，二选一
type ParseRequest struct {
	Command string            `json:"command" binding:"required"`
	Lines   []string          `json:"lines"`
	Output  string            `json:"output"`
	Labels  map[string]string `json:"labels"`
}

// ParseResponse 离线解析结果
type ParseResponse struct {
	collect.ParseOutput
	Metrics []string `json:"metrics"`
}

// CollectRequest 立即采集请求：commands 非空时按临时任务执行，否则执行 job（为空则全部任务）
type CollectRequest struct {
	Job      string   `json:"job"`
	Commands []string `json:"commands"`
}

// Parse 离线解析
// @Summary 解析一段命令回显
// @Tags collector
// @Accept json
// @Produce json
// @Param request body ParseRequest true "解析请求"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/parse [post]
func (h *CollectorHandler) Parse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_FAILED",
			Message: "command 不能为空",
		})
		return
	}
	if req.Lines != nil && req.Output != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_FAILED",
			Message: "lines 与 output 只能提供一个",
		})
		return
	}

	var out collect.ParseOutput
	if req.Lines != nil {
		out = h.collectorService.Parse(command, req.Lines, collect.Labels(req.Labels))
	} else {
		out = h.collectorService.ParseRaw(command, req.Output, collect.Labels(req.Labels))
	}
	lines := out.Result.Lines()
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "解析成功",
		Data:    ParseResponse{ParseOutput: out, Metrics: lines},
	})
}

// Collect 立即执行采集
// @Summary 立即执行采集任务
// @Tags collector
// @Accept json
// @Produce json
// @Param request body CollectRequest true "采集请求"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse "任务不存在"
// @Router /api/v1/collect [post]
func (h *CollectorHandler) Collect(c *gin.Context) {
	var req CollectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_PARAMS",
				Message: "请求参数无效: " + err.Error(),
			})
			return
		}
	}

	ctx := c.Request.Context()
	var reports []*service.CommandReport
	if len(req.Commands) > 0 {
		reports = h.collectorService.RunJob(ctx, "adhoc", req.Commands)
	} else {
		var err error
		reports, err = h.scheduler.RunNow(ctx, req.Job)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "JOB_NOT_FOUND",
				Message: err.Error(),
			})
			return
		}
	}
	logger.WithField("request_id", c.GetString("request_id")).Infof("Manual collect finished with %d reports", len(reports))
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "采集完成",
		Data:    reports,
	})
}

// RecentRuns 查询最近的命令执行记录
// @Summary 查询执行记录
// @Tags collector
// @Produce json
// @Param command query string false "命令"
// @Param limit query int false "条数，默认 50，最大 500"
// @Success 200 {object} SuccessResponse
// @Failure 503 {object} ErrorResponse "数据库不可用"
// @Router /api/v1/runs [get]
func (h *CollectorHandler) RecentRuns(c *gin.Context) {
	if database.GetDB() == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    "DB_UNAVAILABLE",
			Message: "执行记录未启用",
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := database.RecentRuns(strings.TrimSpace(c.Query("command")), limit)
	if err != nil {
		logger.Errorf("Failed to query runs: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询执行记录失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data:    runs,
	})
}

// GetStats 获取统计信息
// @Summary 获取采集器统计信息
// @Tags collector
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/stats [get]
func (h *CollectorHandler) GetStats(c *gin.Context) {
	stats := h.collectorService.GetStats()
	if database.GetDB() != nil {
		if counts, err := database.RunCounts(); err == nil {
			stats["run_counts"] = counts
		}
		stats["database"] = database.GetStats()
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取统计信息成功",
		Data:    stats,
	})
}

// Health 健康检查
// @Summary 健康检查
// @Tags system
// @Produce json
// @Success 200 {object} SuccessResponse "服务正常"
// @Failure 503 {object} ErrorResponse "服务异常"
// @Router /api/v1/health [get]
func (h *CollectorHandler) Health(c *gin.Context) {
	stats := h.collectorService.GetStats()

	if running, ok := stats["running"].(bool); !ok || !running {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    "SERVICE_UNAVAILABLE",
			Message: "采集器服务未运行",
		})
		return
	}
	if database.GetDB() != nil {
		if err := database.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Code:    "DB_UNHEALTHY",
				Message: "数据库异常: " + err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "服务正常",
		Data:    stats,
	})
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ExporterHandler 向 Prometheus 暴露设备指标文件
type ExporterHandler struct {
	dataDir string
}

// NewExporterHandler 创建指标导出处理器
func NewExporterHandler(dataDir string) *ExporterHandler {
	return &ExporterHandler{dataDir: dataDir}
}

// MetricsContentType Prometheus 文本格式
const MetricsContentType = "text/plain; version=0.0.4; charset=utf-8"

// Metrics 返回每个命令目录中最新的指标文件内容
func (h *ExporterHandler) Metrics(c *gin.Context) {
	body, err := service.LatestMetrics(h.dataDir)
	if err != nil {
		if errors.Is(err, service.ErrDataDirNotFound) {
			c.String(http.StatusInternalServerError, "Data directory not found.")
			return
		}
		logger.Errorf("Failed to assemble metrics: %v", err)
		c.String(http.StatusInternalServerError, "Failed to read metrics.")
		return
	}
	c.Data(http.StatusOK, MetricsContentType, []byte(body))
}
