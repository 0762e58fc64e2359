package tokens

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authsession_refresh_total",
		Help: "Token refreshes by outcome (ok, failed, superseded).",
	}, []string{"result"})
	refreshJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authsession_refresh_joined_total",
		Help: "Callers that awaited an in-flight refresh instead of starting one.",
	})
)
