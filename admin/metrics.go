package admin

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var adminMetricsOnce sync.Once

var (
	adminViewsTotal     *prometheus.CounterVec
	adminActionsTotal   *prometheus.CounterVec
	changelistQueryTime *prometheus.HistogramVec
)

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		logrus.Warnf("prometheus counter register failed: %v", err)
	}
	return c
}

func registerHistogramVec(c *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		logrus.Warnf("prometheus histogram register failed: %v", err)
	}
	return c
}

func initAdminMetrics() {
	adminMetricsOnce.Do(func() {
		adminViewsTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adminutils",
			Subsystem: "admin",
			Name:      "views_total",
			Help:      "Admin views served, by model, view and result.",
		}, []string{"model", "view", "result"}))

		adminActionsTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adminutils",
			Subsystem: "admin",
			Name:      "actions_total",
			Help:      "Changelist actions run, by model, action and result.",
		}, []string{"model", "action", "result"}))

		changelistQueryTime = registerHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adminutils",
			Subsystem: "admin",
			Name:      "changelist_query_seconds",
			Help:      "Duration of filtered changelist queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}))
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func recordView(model, view string, err error) {
	if adminViewsTotal == nil {
		return
	}
	adminViewsTotal.WithLabelValues(model, view, result(err)).Inc()
}

func recordAction(model, action string, err error) {
	if adminActionsTotal == nil {
		return
	}
	adminActionsTotal.WithLabelValues(model, action, result(err)).Inc()
}

func recordChangelistQuery(model string, d time.Duration) {
	if changelistQueryTime == nil {
		return
	}
	changelistQueryTime.WithLabelValues(model).Observe(d.Seconds())
}
