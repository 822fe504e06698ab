package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mdarchive"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	imageDuration    *prom.HistogramVec
	imageResults     *prom.CounterVec
	embeddedBytes    prom.Counter
	documentDuration *prom.HistogramVec
	inFlight         prom.Gauge
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		imageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "image_duration_seconds",
			Help:      "Time to fetch and encode one image",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		imageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "image_results_total",
			Help:      "Image outcomes by reference kind",
		}, []string{"kind", "result"}),
		embeddedBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "embedded_bytes_total",
			Help:      "Image bytes embedded as data URIs",
		}),
		documentDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Duration of whole document archive runs",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "images_in_flight",
			Help:      "Images currently being fetched or encoded",
		}),
	}
	reg.MustRegister(pr.imageDuration, pr.imageResults, pr.embeddedBytes, pr.documentDuration, pr.inFlight)
	return pr
}

func (p *PrometheusRecorder) ObserveImageDuration(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.imageDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncImageResult(kind string, result ResultLabel) {
	if p == nil {
		return
	}
	p.imageResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) AddEmbeddedBytes(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.embeddedBytes.Add(float64(n))
}

func (p *PrometheusRecorder) ObserveDocumentDuration(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.documentDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetInFlight(n int) {
	if p == nil {
		return
	}
	p.inFlight.Set(float64(n))
}

// WriteTextfile writes the metrics gathered from g to path in the text
// exposition format, atomically.
func WriteTextfile(path string, g prom.Gatherer) error {
	return prom.WriteToTextfile(path, g)
}
