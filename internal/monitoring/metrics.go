package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 结果标签取值
const (
	ResultExported = "exported"
	ResultEmpty    = "empty"
	ResultError    = "error"
	ResultDecoded  = "decoded"
	ResultSkipped  = "skipped"
)

// Metrics 导出过程的监控指标。
//
// 使用独立注册表，多次创建互不影响。所有方法允许 nil 接收者。
type Metrics struct {
	registry *prometheus.Registry

	// 邮件指标
	MessagesTotal     *prometheus.CounterVec
	MessageSize       prometheus.Histogram
	SerializeDuration prometheus.Histogram

	// 附件指标
	AttachmentsTotal   *prometheus.CounterVec
	AttachmentWarnings *prometheus.CounterVec
	AttachmentSize     prometheus.Histogram

	// 运行指标
	PanicsTotal     prometheus.Counter
	RunDuration     prometheus.Gauge
	LastRunFinished prometheus.Gauge
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailexport_messages_total",
				Help: "Total number of processed messages by result",
			},
			[]string{"result"},
		),

		MessageSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailexport_message_size_bytes",
				Help:    "Size of exported .eml files in bytes",
				Buckets: prometheus.ExponentialBuckets(512, 4, 8),
			},
		),

		SerializeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailexport_serialize_duration_seconds",
				Help:    "Time spent serializing a single message",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),

		AttachmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailexport_attachments_total",
				Help: "Total number of attachment records by result",
			},
			[]string{"result"},
		),

		AttachmentWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailexport_attachment_warnings_total",
				Help: "Non-fatal attachment decode warnings by kind",
			},
			[]string{"kind"},
		),

		AttachmentSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailexport_attachment_size_bytes",
				Help:    "Decoded attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailexport_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailexport_run_duration_seconds",
				Help: "Duration of the last export run",
			},
		),

		LastRunFinished: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailexport_last_run_finished_timestamp_seconds",
				Help: "Unix time the last export run finished",
			},
		),
	}
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordMessage 记录一封邮件的处理结果
func (m *Metrics) RecordMessage(result string, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(result).Inc()
	if result == ResultExported {
		m.MessageSize.Observe(float64(size))
		m.SerializeDuration.Observe(duration.Seconds())
	}
}

// RecordAttachment 记录一条附件记录的处理结果
func (m *Metrics) RecordAttachment(result string, size int64) {
	if m == nil {
		return
	}
	m.AttachmentsTotal.WithLabelValues(result).Inc()
	if result == ResultDecoded {
		m.AttachmentSize.Observe(float64(size))
	}
}

// RecordAttachmentWarning 记录附件告警
func (m *Metrics) RecordAttachmentWarning(kind string) {
	if m == nil {
		return
	}
	m.AttachmentWarnings.WithLabelValues(kind).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordRun 记录一次导出运行
func (m *Metrics) RecordRun(duration time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(duration.Seconds())
	m.LastRunFinished.Set(float64(finished.Unix()))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile 以 node_exporter textfile 格式写出指标
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
