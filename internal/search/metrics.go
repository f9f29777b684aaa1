package search

import "github.com/prometheus/client_golang/prometheus"

// Builder counters; registered on a caller supplied registry
type Metrics struct {
	ClustersAdded  *prometheus.CounterVec
	Tasks          *prometheus.CounterVec
	PolytomyDegree prometheus.Histogram
	SetSize        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ClustersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setx",
			Name:      "clusters_added_total",
			Help:      "Clusters newly added to set X, by phase.",
		}, []string{"phase"}),
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setx",
			Name:      "tasks_total",
			Help:      "Concurrent tasks run, by phase and result.",
		}, []string{"phase", "result"}),
		PolytomyDegree: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "setx",
			Name:      "polytomy_degree",
			Help:      "Number of children of consensus tree polytomies sent to resolution.",
			Buckets:   prometheus.ExponentialBuckets(3, 2, 10),
		}),
		SetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "setx",
			Name:      "set_size",
			Help:      "Number of clusters in set X.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ClustersAdded, m.Tasks, m.PolytomyDegree, m.SetSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) taskDone(phase Phase, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Tasks.WithLabelValues(phase.String(), result).Inc()
}
