package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "a2a"

// Exporter publishes Collector snapshots in Prometheus exposition format.
// It implements prometheus.Collector by re-reading the snapshot on every
// scrape, so there is no double bookkeeping between the two systems.
type Exporter struct {
	collector *Collector

	processedDesc   *prometheus.Desc
	succeededDesc   *prometheus.Desc
	failedDesc      *prometheus.Desc
	retriedDesc     *prometheus.Desc
	inFlightDesc    *prometheus.Desc
	latencyAvgDesc  *prometheus.Desc
	latencyP95Desc  *prometheus.Desc
	latencyP99Desc  *prometheus.Desc
	throughputDesc  *prometheus.Desc
	failureKindDesc *prometheus.Desc
}

func NewExporter(collector *Collector) *Exporter {
	return &Exporter{
		collector: collector,
		processedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_processed_total"),
			"Total messages that reached a terminal resolution.", nil, nil,
		),
		succeededDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_succeeded_total"),
			"Total messages resolved successfully.", nil, nil,
		),
		failedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_failed_total"),
			"Total messages resolved with a terminal failure.", nil, nil,
		),
		retriedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_retried_total"),
			"Total retry re-enqueues across all messages.", nil, nil,
		),
		inFlightDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_in_flight"),
			"Messages currently being handled.", nil, nil,
		),
		latencyAvgDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "response_time_avg_ms"),
			"Mean response time over the sample window.", nil, nil,
		),
		latencyP95Desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "response_time_p95_ms"),
			"95th percentile response time over the sample window.", nil, nil,
		),
		latencyP99Desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "response_time_p99_ms"),
			"99th percentile response time over the sample window.", nil, nil,
		),
		throughputDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "throughput_per_second"),
			"Messages processed per second of uptime.", nil, nil,
		),
		failureKindDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "failures_total"),
			"Terminal failures by error kind.", []string{"kind"}, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.processedDesc
	ch <- e.succeededDesc
	ch <- e.failedDesc
	ch <- e.retriedDesc
	ch <- e.inFlightDesc
	ch <- e.latencyAvgDesc
	ch <- e.latencyP95Desc
	ch <- e.latencyP99Desc
	ch <- e.throughputDesc
	ch <- e.failureKindDesc
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.processedDesc, prometheus.CounterValue, float64(snap.MessagesProcessed))
	ch <- prometheus.MustNewConstMetric(e.succeededDesc, prometheus.CounterValue, float64(snap.MessagesSucceeded))
	ch <- prometheus.MustNewConstMetric(e.failedDesc, prometheus.CounterValue, float64(snap.MessagesFailed))
	ch <- prometheus.MustNewConstMetric(e.retriedDesc, prometheus.CounterValue, float64(snap.MessagesRetried))
	ch <- prometheus.MustNewConstMetric(e.inFlightDesc, prometheus.GaugeValue, float64(snap.InFlight))
	ch <- prometheus.MustNewConstMetric(e.latencyAvgDesc, prometheus.GaugeValue, snap.AvgResponseTimeMs)
	ch <- prometheus.MustNewConstMetric(e.latencyP95Desc, prometheus.GaugeValue, snap.P95ResponseTimeMs)
	ch <- prometheus.MustNewConstMetric(e.latencyP99Desc, prometheus.GaugeValue, snap.P99ResponseTimeMs)
	ch <- prometheus.MustNewConstMetric(e.throughputDesc, prometheus.GaugeValue, snap.ThroughputPerSec)

	for kind, count := range snap.FailuresByKind {
		ch <- prometheus.MustNewConstMetric(e.failureKindDesc, prometheus.CounterValue, float64(count), string(kind))
	}
}

// Handler returns an HTTP handler serving this exporter on its own registry.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
