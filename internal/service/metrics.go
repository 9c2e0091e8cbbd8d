package service

import (
	"net/http"
	"time"

	"github.com/ontcollector/ontcollector/addone/collect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 采集器自身的运行指标（与设备指标分开暴露）
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	observations *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	connected    prometheus.Gauge
	cleanup      prometheus.Counter
}

// NewMetrics 创建独立注册表并注册全部指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ont_collector",
			Name:      "command_runs_total",
			Help:      "Number of command executions by result status.",
		}, []string{"command", "status"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ont_collector",
			Name:      "observations_total",
			Help:      "Number of metric lines produced per command.",
		}, []string{"command"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ont_collector",
			Name:      "skipped_total",
			Help:      "Number of silently dropped records per command and reason.",
		}, []string{"command", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ont_collector",
			Name:      "command_duration_seconds",
			Help:      "Wall time of a command including the fixed wait.",
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 8, 13, 21},
		}, []string{"command"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ont_collector",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced a metrics file.",
		}, []string{"command"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ont_collector",
			Name:      "ssh_connected",
			Help:      "1 when the device shell is connected.",
		}),
		cleanup: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ont_collector",
			Name:      "cleanup_deleted_files_total",
			Help:      "Number of expired metrics files removed.",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.observations, m.skipped, m.duration, m.lastSuccess, m.connected, m.cleanup,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 promhttp 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun 记录一次命令执行
func (m *Metrics) ObserveRun(command, status string, d time.Duration, res collect.Result) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(d.Seconds())
	if n := len(res.Observations); n > 0 {
		m.observations.WithLabelValues(command).Add(float64(n))
	}
	for reason, n := range res.Skipped {
		m.skipped.WithLabelValues(command, string(reason)).Add(float64(n))
	}
}

// MarkSuccess 记录命令最近一次成功写出文件的时间
func (m *Metrics) MarkSuccess(command string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(command).Set(float64(at.Unix()))
}

// SetConnected 更新 Shell 连接状态
func (m *Metrics) SetConnected(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// AddCleanupDeleted 累加清理删除的文件数
func (m *Metrics) AddCleanupDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanup.Add(float64(n))
}
