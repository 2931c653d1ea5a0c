package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "entrylog_scan_outcomes_total",
	Help: "RFID scan attempts by outcome.",
}, []string{"outcome"})
