package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/driftmarket/driftmarket/pkg/event"
	"github.com/driftmarket/driftmarket/pkg/metrics"
)

func TestEventListenersBumpCounters(t *testing.T) {
	registerEventListeners()

	created := testutil.ToFloat64(metrics.OrdersCreated)
	sent := testutil.ToFloat64(metrics.OrderEmails.WithLabelValues("sent"))
	failed := testutil.ToFloat64(metrics.OrderEmails.WithLabelValues("failed"))

	event.Fire(event.OrderCreated, "o-1")
	event.Fire(event.OrderEmailSent, "o-1")
	event.Fire(event.OrderEmailFailed, "o-2")
	event.Fire(event.OrderEmailFailed, "o-3")

	assert.Equal(t, created+1, testutil.ToFloat64(metrics.OrdersCreated))
	assert.Equal(t, sent+1, testutil.ToFloat64(metrics.OrderEmails.WithLabelValues("sent")))
	assert.Equal(t, failed+2, testutil.ToFloat64(metrics.OrderEmails.WithLabelValues("failed")))
}

func TestEventListenersRegisterOnce(t *testing.T) {
	registerEventListeners()
	registerEventListeners()

	before := testutil.ToFloat64(metrics.OrdersCreated)
	event.Fire(event.OrderCreated, "o-1")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OrdersCreated))
}
