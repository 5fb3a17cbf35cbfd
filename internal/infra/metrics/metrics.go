package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estoque_sync_pushes_total",
		Help: "Snapshot pushes dispatched to the remote sheet.",
	})

	PushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estoque_sync_push_failures_total",
		Help: "Pushes that failed at the network level.",
	})

	PullsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estoque_sync_pulls_total",
		Help: "Remote pulls by result.",
	}, []string{"result"})

	PullsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estoque_sync_pulls_suppressed_total",
		Help: "Background pulls dropped during the post-push cooldown.",
	})
)
