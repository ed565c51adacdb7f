// Package metrics 生成任务的 Prometheus 指标，使用独立 Registry
package metrics

import (
	"time"

	"ChannelSync/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// GenerationMetrics 生成任务指标
type GenerationMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	triggersTotal    *prometheus.CounterVec
	streamsTotal     *prometheus.GaugeVec
	channelsGauge    *prometheus.GaugeVec
	numberDrift      prometheus.Gauge
	exhaustedGauge   prometheus.Gauge
	providerErrors   prometheus.Counter
	matchCacheTotal  *prometheus.CounterVec
	lastSuccessGauge prometheus.Gauge

	collectors []prometheus.Collector
}

// NewGenerationMetrics 创建并注册指标
func NewGenerationMetrics(registry *prometheus.Registry) (*GenerationMetrics, error) {
	m := &GenerationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewRegistry 带 Go 运行时与进程指标的 Registry
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func (m *GenerationMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_generation_runs_total",
			Help: "Total number of generation runs",
		},
		[]string{"status"}, // succeeded / failed / cancelled
	)
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "channelsync_generation_run_duration_seconds",
		Help:    "Time taken by generation runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms ~ 3.4min
	})
	m.triggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_generation_triggers_total",
			Help: "Generation triggers by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: started / queued
	)
	m.streamsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channelsync_streams",
			Help: "Streams seen by the last run",
		},
		[]string{"result"}, // total / excluded / unmatched / matched
	)
	m.channelsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channelsync_channels",
			Help: "Managed channels by state after the last run",
		},
		[]string{"state"},
	)
	m.numberDrift = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "channelsync_number_drift",
		Help: "Channels whose number changed in the last run",
	})
	m.exhaustedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "channelsync_channels_exhausted",
		Help: "Channels left without a number in the last run",
	})
	m.providerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channelsync_provider_errors_total",
		Help: "Channel provider call failures",
	})
	m.matchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_match_cache_total",
			Help: "Match cache lookups",
		},
		[]string{"result"}, // hit / miss
	)
	m.lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "channelsync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run",
	})

	m.collectors = []prometheus.Collector{
		m.runsTotal, m.runDuration, m.triggersTotal, m.streamsTotal, m.channelsGauge,
		m.numberDrift, m.exhaustedGauge, m.providerErrors, m.matchCacheTotal, m.lastSuccessGauge,
	}
}

// Describe implements prometheus.Collector
func (m *GenerationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *GenerationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordTrigger 记录一次触发
func (m *GenerationMetrics) RecordTrigger(source string, queued bool) {
	outcome := "started"
	if queued {
		outcome = "queued"
	}
	m.triggersTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRun 记录一次运行的结果与报告
func (m *GenerationMetrics) RecordRun(status model.RunStatus, took time.Duration, report model.RunReport) {
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(took.Seconds())
	if status != model.RunSucceeded {
		return
	}
	m.lastSuccessGauge.SetToCurrentTime()
	m.streamsTotal.WithLabelValues("total").Set(float64(report.StreamsTotal))
	m.streamsTotal.WithLabelValues("excluded").Set(float64(report.StreamsExcluded))
	m.streamsTotal.WithLabelValues("filtered").Set(float64(report.StreamsFiltered))
	m.streamsTotal.WithLabelValues("unmatched").Set(float64(report.StreamsUnmatched))
	m.streamsTotal.WithLabelValues("matched").Set(float64(report.StreamsMatched))
	m.channelsGauge.WithLabelValues(string(model.ChannelActive)).Set(float64(report.ChannelsActive))
	m.channelsGauge.WithLabelValues(string(model.ChannelPendingCreate)).Set(float64(report.ChannelsPending))
	m.numberDrift.Set(float64(report.NumberDrift))
	m.exhaustedGauge.Set(float64(len(report.Exhausted)))
	m.providerErrors.Add(float64(report.ProviderErrors))
}

// RecordMatchCache 记录匹配缓存增量
func (m *GenerationMetrics) RecordMatchCache(hits, misses int64) {
	if hits > 0 {
		m.matchCacheTotal.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		m.matchCacheTotal.WithLabelValues("miss").Add(float64(misses))
	}
}
