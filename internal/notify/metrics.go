package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	smsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_sms_sent_total",
		Help: "The total number of ticket SMS handed to the provider",
	})
	smsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_sms_failed_total",
		Help: "The total number of failed SMS send attempts",
	})
	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_messages_dropped_total",
		Help: "Messages dropped after exhausting retries",
	})
)
