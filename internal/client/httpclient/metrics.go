package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authsession_requests_total",
		Help: "Backend round trips by method and status code (0 for transport failures).",
	}, []string{"method", "code"})
	replaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authsession_replays_total",
		Help: "Requests replayed after a 401, by outcome.",
	}, []string{"result"})
)
