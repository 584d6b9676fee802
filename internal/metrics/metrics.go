// Package metrics holds the daemon's Prometheus collectors. Scheduler
// passes record through the helpers here; the registry is exposed on
// /metrics by the control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rozhlasd_crawl_passes_total",
		Help: "Completed crawl passes over the target list",
	})

	crawlTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rozhlasd_crawl_targets_total",
		Help: "Targets crawled by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	episodesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rozhlasd_episodes_discovered_total",
		Help: "Episodes reported by discovery before dedupe",
	})

	episodesReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rozhlasd_episodes_reconciled_total",
		Help: "Unique episodes reconciled into the catalog by outcome",
	}, []string{"outcome"}) // outcome=created|updated|revived|failed

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rozhlasd_jobs_finished_total",
		Help: "Download jobs finished by result",
	}, []string{"result"}) // result=success|failed|watch|handed|skipped

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rozhlasd_probes_total",
		Help: "Availability probes by verdict",
	}, []string{"verdict"}) // verdict=available|unavailable|gone

	probeRequeues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rozhlasd_probe_requeues_total",
		Help: "Episodes whose assets were requeued after coming back",
	})

	taskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rozhlasd_task_failures_total",
		Help: "Scheduled task runs that ended in an error",
	}, []string{"task"}) // task=crawl|download|availability

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rozhlasd_task_duration_seconds",
		Help:    "Wall time of scheduled task runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rozhlasd_event_subscribers",
		Help: "Listeners currently attached to the event bus",
	})
)

func IncCrawlPass() { crawlPasses.Inc() }

func RecordCrawlTargets(ok, failed int) {
	crawlTargets.WithLabelValues("success").Add(float64(ok))
	crawlTargets.WithLabelValues("failure").Add(float64(failed))
}

func RecordIngest(discovered, created, updated, revived, failed int) {
	episodesDiscovered.Add(float64(discovered))
	episodesReconciled.WithLabelValues("created").Add(float64(created))
	episodesReconciled.WithLabelValues("updated").Add(float64(updated))
	episodesReconciled.WithLabelValues("revived").Add(float64(revived))
	episodesReconciled.WithLabelValues("failed").Add(float64(failed))
}

func RecordJobBatch(succeeded, failed, watching, handed, skipped int) {
	jobsFinished.WithLabelValues("success").Add(float64(succeeded))
	jobsFinished.WithLabelValues("failed").Add(float64(failed))
	jobsFinished.WithLabelValues("watch").Add(float64(watching))
	jobsFinished.WithLabelValues("handed").Add(float64(handed))
	jobsFinished.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordProbePass(available, unavailable, gone, requeued int) {
	probesTotal.WithLabelValues("available").Add(float64(available))
	probesTotal.WithLabelValues("unavailable").Add(float64(unavailable))
	probesTotal.WithLabelValues("gone").Add(float64(gone))
	probeRequeues.Add(float64(requeued))
}

func IncTaskFailure(task string) { taskFailures.WithLabelValues(task).Inc() }

func ObserveTaskDuration(task string, seconds float64) {
	taskDuration.WithLabelValues(task).Observe(seconds)
}

func SetEventSubscribers(n int) { eventSubscribers.Set(float64(n)) }
