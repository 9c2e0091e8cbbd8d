package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ontcollector/ontcollector/api/handler"
	"github.com/ontcollector/ontcollector/internal/service"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

// Options 路由依赖
type Options struct {
	Collector *service.CollectorService
	Scheduler *service.Scheduler
	Metrics   *service.Metrics
	DataDir   string
	LogPath   string
	Mode      string
}

// SetupRouter 设置路由
func SetupRouter(opts Options) *gin.Engine {
	mode := opts.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	exporterHandler := handler.NewExporterHandler(opts.DataDir)
	collectorHandler := handler.NewCollectorHandler(opts.Collector, opts.Scheduler)
	logsHandler := handler.NewLogsHandler(opts.LogPath)

	// Prometheus 抓取入口：设备指标
	r.GET("/metrics", exporterHandler.Metrics)
	// 采集器自身运行指标
	if opts.Metrics != nil {
		r.GET("/collector/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", collectorHandler.Health)
		v1.GET("/stats", collectorHandler.GetStats)
		v1.GET("/runs", collectorHandler.RecentRuns)
		v1.GET("/logs", logsHandler.TailLogs)
		v1.POST("/parse", collectorHandler.Parse)
		v1.POST("/collect", collectorHandler.Collect)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件；/metrics 抓取频繁，只在 debug 级别记录
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		case c.Request.URL.Path == "/metrics":
			entry.Debug("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}
