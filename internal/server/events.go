package server

import (
	"sync"

	"github.com/driftmarket/driftmarket/pkg/event"
	"github.com/driftmarket/driftmarket/pkg/metrics"
)

var eventWiring sync.Once

// registerEventListeners binds the order-pipeline events to their
// prometheus counters. Build can run more than once in a process (CLI
// verbs share it), so registration happens once.
func registerEventListeners() {
	eventWiring.Do(func() {
		event.Listen(event.OrderCreated, func(interface{}) {
			metrics.OrdersCreated.Inc()
		})
		event.Listen(event.OrderEmailSent, func(interface{}) {
			metrics.OrderEmails.WithLabelValues("sent").Inc()
		})
		event.Listen(event.OrderEmailFailed, func(interface{}) {
			metrics.OrderEmails.WithLabelValues("failed").Inc()
		})
	})
}
