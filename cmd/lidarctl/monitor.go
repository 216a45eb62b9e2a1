package main

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// startMonitor periodically logs basic runtime health. Adapted from
// dividat-driver's server.startMonitor; useful here mainly to notice a
// goroutine leak in the acquisition pump during a long-running serve.
func startMonitor(log *logrus.Entry) {
	var m runtime.MemStats

	c := time.NewTicker(30 * time.Second).C

	for range c {
		runtime.ReadMemStats(&m)
		log.WithField("sysMem", m.Sys/1024).WithField("routines", runtime.NumGoroutine()).Info("Monitoring runtime")
	}
}
